package pdfextract

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// TextExtractor emits one unit per page holding its trimmed text, one line per baseline.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Modality() domain.Modality {
	return domain.ModalityText
}

func (e *TextExtractor) Extract(ctx context.Context, src domain.SourceDocument) ([]domain.RawContentUnit, error) {
	var units []domain.RawContentUnit
	err := eachPage(ctx, src, domain.ModalityText, func(pageNum int, page pdf.Page) error {
		text, err := pageText(page)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		units = append(units, domain.RawContentUnit{
			Page:     pageNum,
			Content:  text,
			Modality: domain.ModalityText,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// pageText prefers layout-ordered lines and falls back to the raw content
// stream text when the page layout cannot be interpreted.
func pageText(page pdf.Page) (string, error) {
	if text, ok := layoutText(page); ok {
		return text, nil
	}
	return page.GetPlainText(nil)
}

func layoutText(page pdf.Page) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()

	lines := groupLines(page.Content().Text)
	if len(lines) == 0 {
		return "", false
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		cells := make([]string, 0, len(line.cells))
		for _, cell := range line.cells {
			cells = append(cells, cell.text)
		}
		out = append(out, strings.Join(cells, " "))
	}
	return strings.Join(out, "\n"), true
}
