// Package xlsx writes extracted tables to an Excel workbook for inspection.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const summarySheet = "tables"

// SheetName is the worksheet holding one table, e.g. "p2_t1".
func SheetName(t domain.Table) string {
	return fmt.Sprintf("p%d_t%d", t.Page, t.Index)
}

// WriteTables writes a summary sheet followed by one sheet per table.
// Missing cells stay blank.
func WriteTables(w io.Writer, tables []domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	header := []any{"sheet", "page", "index", "rows", "columns"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for i, table := range tables {
		name := SheetName(table)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		columns := 0
		for r, row := range table.Rows {
			if len(row) > columns {
				columns = len(row)
			}
			for c, cell := range row {
				if cell == nil {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return fmt.Errorf("cell name: %w", err)
				}
				if err := f.SetCellStr(name, ref, *cell); err != nil {
					return fmt.Errorf("write cell %s!%s: %w", name, ref, err)
				}
			}
		}

		summary := []any{name, table.Page, table.Index, len(table.Rows), columns}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, ref, &summary); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
