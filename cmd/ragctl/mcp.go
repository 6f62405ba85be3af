package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/multimodal-rag/internal/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_document tool over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		return mcpadapter.ServeStdio(mcpadapter.NewServer(p.QueryUC, version))
	},
}
