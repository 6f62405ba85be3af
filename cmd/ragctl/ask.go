package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const snippetRunes = 200

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed PDF",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Number of chunks to retrieve (default RAG_TOP_K)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	answer, err := p.QueryUC.Answer(ctx, strings.Join(args, " "), askTopK)
	if err != nil {
		return err
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func printAnswer(w io.Writer, answer *domain.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for _, src := range answer.Sources {
		fmt.Fprintf(w, "[Source %d] (page %d, modality %s)\n", src.Rank, src.Page, src.Modality)
		fmt.Fprintf(w, "    %s\n", snippet(src.Content))
	}
}

func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= snippetRunes {
		return flat
	}
	return string(runes[:snippetRunes]) + "..."
}
