package chunking

import (
	"strings"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const DefaultChunkSize = 500

// WordChunker groups whitespace-separated words into chunks of at most ChunkSize words.
// Chunks never overlap and ignore sentence or table boundaries.
type WordChunker struct {
	ChunkSize int
}

func NewWordChunker(chunkSize int) *WordChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &WordChunker{ChunkSize: chunkSize}
}

func (c *WordChunker) Chunk(content string, page int, modality domain.Modality) []domain.Chunk {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	out := make([]domain.Chunk, 0, len(words)/c.ChunkSize+1)
	for start := 0; start < len(words); start += c.ChunkSize {
		end := min(start+c.ChunkSize, len(words))
		out = append(out, domain.Chunk{
			Page:     page,
			Content:  strings.Join(words[start:end], " "),
			Modality: modality,
		})
	}
	return out
}
