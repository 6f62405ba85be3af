package huggingface

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EmbeddingPayload is a decoded feature-extraction response. The backend
// returns either one vector per input or one vector per token per input,
// depending on whether the model pools internally.
type EmbeddingPayload interface {
	Vectors() ([][]float32, error)
}

// FlatVectors holds one already pooled vector per input.
type FlatVectors [][]float32

// TokenVectors holds per-token vectors for every input.
type TokenVectors [][][]float32

func (v FlatVectors) Vectors() ([][]float32, error) {
	return v, nil
}

// Vectors mean-pools every input independently.
func (v TokenVectors) Vectors() ([][]float32, error) {
	out := make([][]float32, len(v))
	for i, tokens := range v {
		pooled, err := MeanPool(tokens)
		if err != nil {
			return nil, fmt.Errorf("pool input %d: %w", i, err)
		}
		out[i] = pooled
	}
	return out, nil
}

// DecodeEmbeddingPayload inspects the array nesting depth once and decodes
// into the matching variant. A bare vector is treated as a single input.
func DecodeEmbeddingPayload(raw []byte) (EmbeddingPayload, error) {
	switch depth := nestingDepth(raw); depth {
	case 1:
		var single []float32
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("decode embedding vector: %w", err)
		}
		if len(single) == 0 {
			return FlatVectors{}, nil
		}
		return FlatVectors{single}, nil
	case 2:
		var flat FlatVectors
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("decode embedding vectors: %w", err)
		}
		return flat, nil
	case 3:
		var tokens TokenVectors
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return nil, fmt.Errorf("decode token embeddings: %w", err)
		}
		return tokens, nil
	default:
		return nil, fmt.Errorf("unexpected embedding payload nesting depth %d", depth)
	}
}

// nestingDepth counts the leading '[' of a JSON document, ignoring whitespace.
func nestingDepth(raw []byte) int {
	depth := 0
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			depth++
		default:
			return depth
		}
	}
	return depth
}

// MeanPool averages token vectors component-wise.
func MeanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, errors.New("no token vectors to pool")
	}
	dim := len(tokens[0])
	sums := make([]float64, dim)
	for i, token := range tokens {
		if len(token) != dim {
			return nil, fmt.Errorf("token %d has dimension %d, expected %d", i, len(token), dim)
		}
		for d, value := range token {
			sums[d] += float64(value)
		}
	}

	out := make([]float32, dim)
	n := float64(len(tokens))
	for d, sum := range sums {
		out[d] = float32(sum / n)
	}
	return out, nil
}
