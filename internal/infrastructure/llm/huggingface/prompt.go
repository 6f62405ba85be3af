package huggingface

import (
	"fmt"
	"strings"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const systemPrompt = "You are a helpful assistant. Answer the question ONLY using the provided context. " +
	"If the answer is not in the context, say you don't know. " +
	"Cite your sources as [Source 1], [Source 2], etc."

// BuildContext labels chunks [Source 1..n] in rank order, separated by blank lines.
func BuildContext(chunks []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf("[Source %d] %s", i+1, chunk.Content))
	}
	return strings.Join(blocks, "\n\n")
}

func buildUserMessage(question string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", BuildContext(chunks), question)
}
