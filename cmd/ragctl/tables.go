package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/multimodal-rag/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/extractor/pdfextract"
)

var tablesOutput string

var tablesCmd = &cobra.Command{
	Use:   "tables <pdf>",
	Short: "Export the tables detected in a PDF to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runTables,
}

func init() {
	tablesCmd.Flags().StringVarP(&tablesOutput, "output", "o", "tables.xlsx", "Workbook path")
}

func runTables(cmd *cobra.Command, args []string) error {
	src, err := readPDF(args[0])
	if err != nil {
		return err
	}
	tables, err := pdfextract.NewTableExtractor().Tables(cmd.Context(), src)
	if err != nil {
		return err
	}

	f, err := os.Create(tablesOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", tablesOutput, err)
	}
	if err := xlsx.WriteTables(f, tables); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tablesOutput, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tables to %s\n", len(tables), tablesOutput)
	return nil
}
