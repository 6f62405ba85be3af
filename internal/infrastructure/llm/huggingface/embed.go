package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

type featureExtractionRequest struct {
	Inputs  []string                 `json:"inputs"`
	Options featureExtractionOptions `json:"options"`
}

type featureExtractionOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Model() string {
	return e.client.EmbedModel()
}

// EmbedDocuments returns one vector per text, in input order, all of one dimension.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.client.batchSize {
		end := min(start+e.client.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	dim := len(out[0])
	for i, vector := range out {
		if len(vector) == 0 || len(vector) != dim {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"hf embed",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), dim),
			)
		}
	}
	return out, nil
}

// EmbedQuery returns an empty vector for a blank query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	request := featureExtractionRequest{
		Inputs:  batch,
		Options: featureExtractionOptions{WaitForModel: true, UseCache: true},
	}

	var raw json.RawMessage
	err := e.client.execute(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, e.client.embedURL, request, &raw, "embed")
	})
	if err != nil {
		return nil, err
	}

	payload, err := DecodeEmbeddingPayload(raw)
	if err != nil {
		return nil, fmt.Errorf("hf embed: %w", err)
	}
	vectors, err := payload.Vectors()
	if err != nil {
		return nil, fmt.Errorf("hf embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"hf embed",
			fmt.Errorf("vectors/inputs mismatch: %d/%d", len(vectors), len(batch)),
		)
	}
	return vectors, nil
}
