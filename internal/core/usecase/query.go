package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

const (
	DefaultTopK = 4

	ModelLoadingMessage = "The language model is currently loading on the server. Please wait 30 seconds and try again."
	UnauthorizedMessage = "HF_API_TOKEN was rejected. Please check your token scopes in Hugging Face settings."
	backendErrorPrefix  = "Hugging Face error: "
)

type QueryUseCase struct {
	embedder  ports.Embedder
	session   *Session
	generator ports.AnswerGenerator
	topK      int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	session *Session,
	generator ports.AnswerGenerator,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryUseCase{
		embedder:  embedder,
		session:   session,
		generator: generator,
		topK:      topK,
	}
}

// Answer retrieves the k nearest chunks and asks the generator for a cited
// answer. Generation failures are not errors: they come back as an Answer
// with an advisory text, a non-ok status and the retrieved sources.
func (uc *QueryUseCase) Answer(ctx context.Context, question string, k int) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is empty"))
	}
	if k <= 0 {
		k = uc.topK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed query", errors.New("no embedding available"))
	}

	idx, err := uc.session.Index(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := idx.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return uc.degraded(err, chunks), nil
	}

	return &domain.Answer{
		Text:    answerText,
		Status:  domain.AnswerOK,
		Sources: chunks,
	}, nil
}

func (uc *QueryUseCase) degraded(err error, chunks []domain.RetrievedChunk) *domain.Answer {
	answer := &domain.Answer{Sources: chunks}
	switch {
	case domain.IsKind(err, domain.ErrTemporary):
		answer.Status = domain.AnswerModelLoading
		answer.Text = ModelLoadingMessage
	case domain.IsKind(err, domain.ErrUnauthorized):
		answer.Status = domain.AnswerUnauthorized
		answer.Text = UnauthorizedMessage
	default:
		answer.Status = domain.AnswerBackendError
		answer.Text = backendErrorPrefix + err.Error()
	}
	slog.Warn("answer_degraded", "status", answer.Status, "sources", len(chunks), "error", err.Error())
	return answer
}
