package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

const (
	ToolAskDocument = "ask_document"
	maxK            = 50
)

// NewServer exposes the query service as an MCP tool server.
func NewServer(query ports.DocumentQueryService, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"multimodal-rag",
		version,
		server.WithToolCapabilities(true),
	)
	s.AddTool(askDocumentTool(), handleAskDocument(query))
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func askDocumentTool() mcp.Tool {
	return mcp.NewTool(ToolAskDocument,
		mcp.WithDescription("Answer a question from the indexed PDF, citing the retrieved text, table and image chunks"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the indexed document"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of chunks to retrieve (default: server RAG_TOP_K)"),
		),
	)
}

func handleAskDocument(query ports.DocumentQueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("Error: question parameter is required"), nil
		}
		k := request.GetInt("k", 0)
		if k > maxK {
			k = maxK
		}

		answer, err := query.Answer(ctx, question, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Query error: %v", err)), nil
		}
		return mcp.NewToolResultText(renderAnswer(answer)), nil
	}
}

func renderAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	if answer.Status != domain.AnswerOK {
		fmt.Fprintf(&b, "\n\n_status: %s_", answer.Status)
	}
	if len(answer.Sources) == 0 {
		return b.String()
	}
	b.WriteString("\n\n## Sources\n")
	for _, src := range answer.Sources {
		fmt.Fprintf(&b, "\n**[Source %d]** page %d, %s (distance %.4f)\n\n%s\n", src.Rank, src.Page, src.Modality, src.Distance, src.Content)
	}
	return b.String()
}
