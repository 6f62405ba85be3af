package huggingface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

func TestDecodeEmbeddingPayloadVariants(t *testing.T) {
	flat, err := DecodeEmbeddingPayload([]byte(" [ [1, 2], [3, 4] ] "))
	require.NoError(t, err)
	require.IsType(t, FlatVectors{}, flat)

	single, err := DecodeEmbeddingPayload([]byte(`[1, 2, 3]`))
	require.NoError(t, err)
	vectors, err := single.Vectors()
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vectors)

	tokens, err := DecodeEmbeddingPayload([]byte("[\n[[1,1],[3,3]]\n]"))
	require.NoError(t, err)
	require.IsType(t, TokenVectors{}, tokens)
	vectors, err = tokens.Vectors()
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 2}}, vectors)

	_, err = DecodeEmbeddingPayload([]byte(`{"error":"boom"}`))
	assert.Error(t, err)
}

func TestMeanPool(t *testing.T) {
	pooled, err := MeanPool([][]float32{{1, 2, 3}, {3, 4, 5}})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, pooled)

	_, err = MeanPool(nil)
	assert.Error(t, err)

	_, err = MeanPool([][]float32{{1, 2}, {1}})
	assert.Error(t, err)
}

func TestTokenPoolingIsPermutationInvariant(t *testing.T) {
	a := [][]float32{{1, 0}, {0, 1}}
	b := [][]float32{{4, 4}, {2, 2}, {0, 0}}
	c := [][]float32{{-1, 5}}

	forward, err := TokenVectors{a, b, c}.Vectors()
	require.NoError(t, err)
	permuted, err := TokenVectors{c, a, b}.Vectors()
	require.NoError(t, err)

	assert.Equal(t, forward[0], permuted[1])
	assert.Equal(t, forward[1], permuted[2])
	assert.Equal(t, forward[2], permuted[0])
}

func TestBuildContextLabelsSources(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{Chunk: domain.Chunk{Content: "first"}, Rank: 1},
		{Chunk: domain.Chunk{Content: "a | b\n | d", Modality: domain.ModalityTable}, Rank: 2},
	}
	assert.Equal(t, "[Source 1] first\n\n[Source 2] a | b\n | d", BuildContext(chunks))
	assert.Equal(t, "", BuildContext(nil))
}

func TestBackendMessageShapes(t *testing.T) {
	assert.Equal(t, "plain", backendMessage([]byte(`{"error":"plain"}`)))
	assert.Equal(t, "nested", backendMessage([]byte(`{"error":{"message":"nested"}}`)))
	assert.Equal(t, "top", backendMessage([]byte(`{"message":"top"}`)))
	assert.Equal(t, "Bad Gateway", backendMessage([]byte("Bad Gateway\n")))
	assert.Equal(t, "", backendMessage(nil))
}
