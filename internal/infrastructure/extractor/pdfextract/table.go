package pdfextract

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const cellSeparator = " | "

// TableExtractor detects tables from glyph layout and emits one unit per table.
type TableExtractor struct{}

func NewTableExtractor() *TableExtractor {
	return &TableExtractor{}
}

func (e *TableExtractor) Modality() domain.Modality {
	return domain.ModalityTable
}

// Tables returns the detected tables in page order, then top to bottom.
func (e *TableExtractor) Tables(ctx context.Context, src domain.SourceDocument) ([]domain.Table, error) {
	var tables []domain.Table
	err := eachPage(ctx, src, domain.ModalityTable, func(pageNum int, page pdf.Page) error {
		content := page.Content()
		for i, rows := range detectTables(groupLines(content.Text)) {
			tables = append(tables, domain.Table{Page: pageNum, Index: i, Rows: rows})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (e *TableExtractor) Extract(ctx context.Context, src domain.SourceDocument) ([]domain.RawContentUnit, error) {
	tables, err := e.Tables(ctx, src)
	if err != nil {
		return nil, err
	}

	units := make([]domain.RawContentUnit, 0, len(tables))
	for _, table := range tables {
		rendered := RenderTable(table.Rows)
		if strings.TrimSpace(rendered) == "" {
			continue
		}
		units = append(units, domain.RawContentUnit{
			Page:     table.Page,
			Content:  rendered,
			Modality: domain.ModalityTable,
		})
	}
	return units, nil
}

// RenderTable joins cells with " | " and rows with newlines. Empty rows are
// skipped and missing cells render as empty strings.
func RenderTable(rows [][]*string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell != nil {
				cells[i] = *cell
			}
		}
		lines = append(lines, strings.Join(cells, cellSeparator))
	}
	return strings.Join(lines, "\n")
}
