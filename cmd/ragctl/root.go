package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/multimodal-rag/internal/bootstrap"
	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/observability/logging"
)

var version = "dev"

var (
	cfg      config.Config
	pipeline *bootstrap.Pipeline
	indexDir string
)

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Index a PDF and ask questions about its text, tables and images",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if indexDir != "" {
			loaded.IndexDir = indexDir
		}
		cfg = loaded
		slog.SetDefault(logging.NewCLILogger(cfg.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexDir, "index-dir", "", "Directory holding vectors.idx and metadata.json (overrides INDEX_DIR)")
	rootCmd.AddCommand(ingestCmd, askCmd, tablesCmd, watchCmd, mcpCmd)
}

// execute runs cmd and releases the pipeline afterwards; cobra skips post-run
// hooks when a command fails, so the close cannot live in one.
func execute(ctx context.Context, cmd *cobra.Command) error {
	defer closePipeline()
	return cmd.ExecuteContext(ctx)
}

func closePipeline() {
	if pipeline != nil {
		pipeline.Close()
		pipeline = nil
	}
}

func openPipeline(ctx context.Context) (*bootstrap.Pipeline, error) {
	if pipeline != nil {
		return pipeline, nil
	}
	p, err := bootstrap.NewPipeline(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	pipeline = p
	return p, nil
}

func readPDF(path string) (domain.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	if !domain.LooksLikePDF(data) {
		return domain.SourceDocument{}, domain.WrapError(domain.ErrInvalidInput, "read pdf", fmt.Errorf("%s is not a PDF", path))
	}
	return domain.SourceDocument{Name: path, Data: data}, nil
}
