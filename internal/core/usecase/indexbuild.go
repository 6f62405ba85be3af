package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

// IndexBuilder runs extraction, chunking, embedding and persistence for one PDF.
type IndexBuilder struct {
	extractors []ports.ContentExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	store      ports.IndexStore
	session    *Session
}

func NewIndexBuilder(
	extractors []ports.ContentExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.IndexStore,
	session *Session,
) *IndexBuilder {
	return &IndexBuilder{
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		session:    session,
	}
}

// Build replaces the persisted index with one built from src.
func (b *IndexBuilder) Build(ctx context.Context, src domain.SourceDocument) (domain.IngestionStats, error) {
	chunks, vectors, stats, err := b.prepare(ctx, src, 0)
	if err != nil {
		return domain.IngestionStats{}, err
	}

	idx, err := b.store.Save(ctx, vectors, chunks)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("save index: %w", err)
	}
	b.activate(idx)
	return stats, nil
}

// Append adds the chunks of src to the persisted index, numbering them after
// the existing ones.
func (b *IndexBuilder) Append(ctx context.Context, src domain.SourceDocument) (domain.IngestionStats, error) {
	appender, ok := b.store.(ports.IndexAppender)
	if !ok {
		return domain.IngestionStats{}, domain.WrapError(domain.ErrInvalidInput, "append index", errors.New("index store does not support appending"))
	}

	offset := 0
	if b.session != nil {
		idx, err := b.session.Index(ctx)
		switch {
		case err == nil:
			offset = idx.Size()
		case !domain.IsKind(err, domain.ErrIndexNotFound):
			return domain.IngestionStats{}, err
		}
	}

	chunks, vectors, stats, err := b.prepare(ctx, src, offset)
	if err != nil {
		return domain.IngestionStats{}, err
	}
	idx, err := appender.Add(ctx, vectors, chunks)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("append index: %w", err)
	}
	b.activate(idx)
	return stats, nil
}

func (b *IndexBuilder) activate(idx ports.SearchIndex) {
	if b.session != nil {
		b.session.Replace(idx)
	}
}

func (b *IndexBuilder) prepare(ctx context.Context, src domain.SourceDocument, firstID int) ([]domain.Chunk, [][]float32, domain.IngestionStats, error) {
	started := time.Now()
	var stats domain.IngestionStats

	units, err := b.extract(ctx, src, &stats)
	if err != nil {
		return nil, nil, stats, err
	}

	chunks := b.chunk(units, firstID)
	if len(chunks) == 0 {
		return nil, nil, stats, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("document produced zero chunks"))
	}
	stats.Chunks = len(chunks)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, stats, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	stats.Dimension = len(vectors[0])

	slog.Info("index_prepared",
		"document", src.Name,
		"pages", stats.Pages,
		"text_units", stats.TextUnits,
		"table_units", stats.TableUnits,
		"image_units", stats.ImageUnits,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return chunks, vectors, stats, nil
}

// extract runs every extractor in order: text, then tables, then images.
func (b *IndexBuilder) extract(ctx context.Context, src domain.SourceDocument, stats *domain.IngestionStats) ([]domain.RawContentUnit, error) {
	var units []domain.RawContentUnit
	pages := make(map[int]struct{})
	for _, extractor := range b.extractors {
		extracted, err := extractor.Extract(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", extractor.Modality(), err)
		}
		for _, unit := range extracted {
			pages[unit.Page] = struct{}{}
			switch unit.Modality {
			case domain.ModalityText:
				stats.TextUnits++
			case domain.ModalityTable:
				stats.TableUnits++
			case domain.ModalityImage:
				stats.ImageUnits++
			}
		}
		units = append(units, extracted...)
	}
	stats.Pages = len(pages)
	return units, nil
}

func (b *IndexBuilder) chunk(units []domain.RawContentUnit, firstID int) []domain.Chunk {
	var chunks []domain.Chunk
	for _, unit := range units {
		for _, chunk := range b.chunker.Chunk(unit.Content, unit.Page, unit.Modality) {
			chunk.ChunkID = firstID + len(chunks)
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
