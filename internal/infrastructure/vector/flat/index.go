// Package flat provides an exact squared-L2 index persisted as a vector file
// plus a metadata file.
package flat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// Index keeps vectors and chunk metadata in positional correspondence:
// vectors[i] is the embedding of chunks[i].
type Index struct {
	dim     int
	vectors [][]float32
	chunks  []domain.Chunk
}

// Build validates the pair and copies it into a new index.
func Build(vectors [][]float32, chunks []domain.Chunk) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("no vectors"))
	}
	idx := &Index{dim: len(vectors[0])}
	if err := idx.append(vectors, chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) append(vectors [][]float32, chunks []domain.Chunk) error {
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"build index",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	if x.dim == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("zero-dimensional vectors"))
	}
	for i, vector := range vectors {
		if len(vector) != x.dim {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"build index",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), x.dim),
			)
		}
	}

	for i, vector := range vectors {
		x.vectors = append(x.vectors, append([]float32(nil), vector...))
		x.chunks = append(x.chunks, chunks[i])
	}
	return nil
}

func (x *Index) Size() int {
	return len(x.vectors)
}

func (x *Index) Dimension() int {
	return x.dim
}

// Chunks returns the metadata in index order.
func (x *Index) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), x.chunks...)
}

// Search returns up to k chunks nearest to query by squared Euclidean distance,
// nearest first, ties broken by position.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
	if len(query) != x.dim {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"search index",
			fmt.Errorf("query dimension %d, index dimension %d", len(query), x.dim),
		)
	}
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type hit struct {
		pos      int
		distance float64
	}
	hits := make([]hit, len(x.vectors))
	for i, vector := range x.vectors {
		hits[i] = hit{pos: i, distance: squaredL2(query, vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	k = min(k, len(hits))
	out := make([]domain.RetrievedChunk, k)
	for i := 0; i < k; i++ {
		out[i] = domain.RetrievedChunk{
			Chunk:    x.chunks[hits[i].pos],
			Rank:     i + 1,
			Distance: hits[i].distance,
		}
	}
	return out, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
