package ports

import (
	"context"
	"io"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// DocumentRepository persists and reads ingestion state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveStats(ctx context.Context, id string, stats domain.IngestionStats) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion and index events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishIndexRebuilt(ctx context.Context, documentID string) error
	SubscribeIndexRebuilt(ctx context.Context, handler func(context.Context, string) error) error
}

// SourceLoader reads the stored PDF of a document.
type SourceLoader interface {
	Load(ctx context.Context, doc *domain.Document) (domain.SourceDocument, error)
}

// ContentExtractor pulls one modality out of a PDF.
type ContentExtractor interface {
	Modality() domain.Modality
	Extract(ctx context.Context, src domain.SourceDocument) ([]domain.RawContentUnit, error)
}

// OCREngine recognizes text in an encoded raster image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Chunker re-splits extracted units into fixed-size word chunks.
type Chunker interface {
	Chunk(content string, page int, modality domain.Modality) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex is a loaded index pair answering nearest-neighbour queries.
type SearchIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error)
	Size() int
}

// IndexStore persists the vector/metadata pair.
type IndexStore interface {
	Save(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (SearchIndex, error)
	Load(ctx context.Context) (SearchIndex, error)
}

// IndexAppender grows a persisted index without rebuilding it.
type IndexAppender interface {
	Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (SearchIndex, error)
}

// AnswerGenerator produces the grounded answer from retrieved chunks.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
}
