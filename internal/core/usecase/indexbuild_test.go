package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

func reportExtractors() []ports.ContentExtractor {
	return []ports.ContentExtractor{
		&extractorFake{modality: domain.ModalityText, units: []domain.RawContentUnit{
			{Page: 1, Content: "Revenue grew. Costs fell.", Modality: domain.ModalityText},
			{Page: 2, Content: "Outlook is stable.", Modality: domain.ModalityText},
		}},
		&extractorFake{modality: domain.ModalityTable, units: []domain.RawContentUnit{
			{Page: 2, Content: "Item | Qty", Modality: domain.ModalityTable},
		}},
		&extractorFake{modality: domain.ModalityImage},
	}
}

func TestIndexBuilderBuildNumbersChunksAndActivatesIndex(t *testing.T) {
	store := &storeFake{}
	session := NewSession(store)
	builder := NewIndexBuilder(reportExtractors(), sentenceChunker{}, &lengthEmbedder{}, store, session)

	stats, err := builder.Build(context.Background(), domain.SourceDocument{Name: "report.pdf"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := domain.IngestionStats{Pages: 2, TextUnits: 2, TableUnits: 1, Chunks: 4, Dimension: 2}
	if stats != want {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if store.saves != 1 {
		t.Fatalf("expected one save, got %d", store.saves)
	}

	chunks := store.current.chunks
	for i, chunk := range chunks {
		if chunk.ChunkID != i {
			t.Fatalf("chunk %d has id %d", i, chunk.ChunkID)
		}
	}
	if chunks[3].Modality != domain.ModalityTable || chunks[3].Page != 2 {
		t.Fatalf("expected table chunk last, got %+v", chunks[3])
	}

	idx, err := session.Index(context.Background())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if idx.Size() != 4 {
		t.Fatalf("expected active index of 4, got %d", idx.Size())
	}
	if store.loads != 0 {
		t.Fatalf("expected build to activate without loading, got %d loads", store.loads)
	}
}

func TestIndexBuilderBuildRejectsEmptyDocument(t *testing.T) {
	store := &storeFake{}
	builder := NewIndexBuilder(
		[]ports.ContentExtractor{&extractorFake{modality: domain.ModalityText}},
		sentenceChunker{},
		&lengthEmbedder{},
		store,
		nil,
	)

	_, err := builder.Build(context.Background(), domain.SourceDocument{Name: "blank.pdf"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save for empty document")
	}
}

func TestIndexBuilderBuildPropagatesExtractorError(t *testing.T) {
	store := &storeFake{}
	extractErr := errors.New("broken xref")
	builder := NewIndexBuilder(
		[]ports.ContentExtractor{&extractorFake{modality: domain.ModalityText, err: extractErr}},
		sentenceChunker{},
		&lengthEmbedder{},
		store,
		nil,
	)

	_, err := builder.Build(context.Background(), domain.SourceDocument{})
	if !errors.Is(err, extractErr) {
		t.Fatalf("expected extractor error, got %v", err)
	}
}

func TestIndexBuilderBuildRejectsVectorCountMismatch(t *testing.T) {
	store := &storeFake{}
	builder := NewIndexBuilder(reportExtractors(), sentenceChunker{}, &lengthEmbedder{short: true}, store, nil)

	_, err := builder.Build(context.Background(), domain.SourceDocument{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save after mismatch")
	}
}

func TestIndexBuilderBuildKeepsPreviousIndexOnSaveError(t *testing.T) {
	store := &storeFake{}
	session := NewSession(store)
	previous := &indexFake{chunks: []domain.Chunk{{ChunkID: 0, Content: "old"}}, vectors: [][]float32{{1, 1}}}
	session.Replace(previous)
	store.saveErr = errors.New("disk full")

	builder := NewIndexBuilder(reportExtractors(), sentenceChunker{}, &lengthEmbedder{}, store, session)
	if _, err := builder.Build(context.Background(), domain.SourceDocument{}); err == nil {
		t.Fatalf("expected save error")
	}

	idx, err := session.Index(context.Background())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if idx != previous {
		t.Fatalf("expected previous index to stay active")
	}
}

func TestIndexBuilderAppendOffsetsChunkIDs(t *testing.T) {
	store := &appendingStoreFake{}
	session := NewSession(store)
	builder := NewIndexBuilder(reportExtractors(), sentenceChunker{}, &lengthEmbedder{}, store, session)

	if _, err := builder.Append(context.Background(), domain.SourceDocument{}); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	if _, err := builder.Append(context.Background(), domain.SourceDocument{}); err != nil {
		t.Fatalf("second Append() error = %v", err)
	}

	chunks := store.current.chunks
	if len(chunks) != 8 {
		t.Fatalf("expected 8 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkID != i {
			t.Fatalf("chunk %d has id %d", i, chunk.ChunkID)
		}
	}
}

func TestIndexBuilderAppendRequiresAppender(t *testing.T) {
	builder := NewIndexBuilder(reportExtractors(), sentenceChunker{}, &lengthEmbedder{}, &storeFake{}, nil)

	_, err := builder.Append(context.Background(), domain.SourceDocument{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
