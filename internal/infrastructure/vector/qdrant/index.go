package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// collectionIndex is a SearchIndex view over a populated collection.
type collectionIndex struct {
	client *Client
	size   int
	dim    int
}

func (x *collectionIndex) Size() int {
	return x.size
}

func (x *collectionIndex) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
	if x.dim > 0 && len(query) != x.dim {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"search qdrant index",
			fmt.Errorf("query dimension %d, index dimension %d", len(query), x.dim),
		)
	}
	if k <= 0 || x.size == 0 {
		return nil, nil
	}
	return x.client.search(ctx, query, min(k, x.size))
}
