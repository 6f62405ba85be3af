package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

// ProcessDocumentUseCase rebuilds the index from an uploaded document and
// tracks its ingestion status.
type ProcessDocumentUseCase struct {
	repo    ports.DocumentRepository
	loader  ports.SourceLoader
	builder *IndexBuilder
	queue   ports.MessageQueue
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	loader ports.SourceLoader,
	builder *IndexBuilder,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:    repo,
		loader:  loader,
		builder: builder,
		queue:   queue,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	stats, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.persistStats(ctx, documentID, stats); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.announce(ctx, documentID)
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (domain.IngestionStats, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("fetch document by id: %w", err)
	}

	src, err := uc.loader.Load(ctx, doc)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("load source document: %w", err)
	}

	stats, err := uc.builder.Build(ctx, src)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("build index: %w", err)
	}
	return stats, nil
}

func (uc *ProcessDocumentUseCase) persistStats(ctx context.Context, documentID string, stats domain.IngestionStats) error {
	if err := uc.repo.SaveStats(ctx, documentID, stats); err != nil {
		return fmt.Errorf("save ingestion stats: %w", err)
	}
	return nil
}

// announce tells other processes to reload; the index is already persisted,
// so a publish failure only delays their reload.
func (uc *ProcessDocumentUseCase) announce(ctx context.Context, documentID string) {
	if uc.queue == nil {
		return
	}
	if err := uc.queue.PublishIndexRebuilt(ctx, documentID); err != nil {
		slog.Warn("index_rebuilt_publish_failed", "document_id", documentID, "error", err.Error())
	}
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
