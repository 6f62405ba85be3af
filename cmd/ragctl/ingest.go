package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

var ingestAppend bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>",
	Short: "Build the index from a PDF",
	Long:  `Extract text, tables and image text from the PDF, embed the chunks and persist the index pair. The previous index is replaced unless --append is set.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAppend, "append", false, "Add the PDF to the existing index instead of replacing it")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src, err := readPDF(args[0])
	if err != nil {
		return err
	}
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}

	var stats domain.IngestionStats
	if ingestAppend {
		stats, err = p.Builder.Append(ctx, src)
	} else {
		stats, err = p.Builder.Build(ctx, src)
	}
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), args[0], stats)
	return nil
}

func printStats(w io.Writer, name string, stats domain.IngestionStats) {
	fmt.Fprintf(w, "Indexed %s\n", name)
	fmt.Fprintf(w, "  pages with content: %d\n", stats.Pages)
	fmt.Fprintf(w, "  units: %d text, %d table, %d image\n", stats.TextUnits, stats.TableUnits, stats.ImageUnits)
	fmt.Fprintf(w, "  chunks: %d (dimension %d)\n", stats.Chunks, stats.Dimension)
}
