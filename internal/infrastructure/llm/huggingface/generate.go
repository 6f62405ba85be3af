package huggingface

import (
	"context"
	"errors"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.3
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type Generator struct {
	client      *Client
	maxTokens   int
	temperature float64
}

func NewGenerator(client *Client, maxTokens int, temperature float64) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	return &Generator{client: client, maxTokens: maxTokens, temperature: temperature}
}

// GenerateAnswer issues one chat completion and returns the model text verbatim.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	request := chatRequest{
		Model: g.client.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserMessage(question, chunks)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var response chatResponse
	err := g.client.execute(ctx, "generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, g.client.chatURL, request, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("hf generate: response has no choices")
	}
	return response.Choices[0].Message.Content, nil
}
