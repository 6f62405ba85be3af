// Package pdfextract pulls text, tables and OCRed images out of PDF documents.
package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// openReader parses the document. The parser panics on some malformed input,
// so panics are turned into ErrInvalidInput.
func openReader(src domain.SourceDocument) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = domain.WrapError(domain.ErrInvalidInput, "open pdf", fmt.Errorf("%s: %v", src.Name, r))
		}
	}()

	if len(src.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open pdf", fmt.Errorf("%s: empty document", src.Name))
	}
	reader, err = pdf.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open pdf", fmt.Errorf("%s: %w", src.Name, err))
	}
	return reader, nil
}

// eachPage calls fn for every non-empty page in order. A page whose handler
// fails or panics is logged and skipped.
func eachPage(ctx context.Context, src domain.SourceDocument, modality domain.Modality, fn func(pageNum int, page pdf.Page) error) error {
	reader, err := openReader(src)
	if err != nil {
		return err
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		if err := safePage(pageNum, page, fn); err != nil {
			slog.Warn("extract_page_skipped",
				"document", src.Name,
				"modality", modality,
				"page", pageNum,
				"error", err.Error(),
			)
		}
	}
	return nil
}

func safePage(pageNum int, page pdf.Page, fn func(int, pdf.Page) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()
	return fn(pageNum, page)
}
