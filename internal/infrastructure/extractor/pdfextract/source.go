package pdfextract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

// SourceLoader reads uploaded documents back from object storage.
type SourceLoader struct {
	storage ports.ObjectStorage
}

func NewSourceLoader(storage ports.ObjectStorage) *SourceLoader {
	return &SourceLoader{storage: storage}
}

func (l *SourceLoader) Load(ctx context.Context, doc *domain.Document) (domain.SourceDocument, error) {
	reader, err := l.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read source document: %w", err)
	}
	if !domain.LooksLikePDF(raw) {
		return domain.SourceDocument{}, domain.WrapError(
			domain.ErrInvalidInput,
			"load source document",
			errors.New("unsupported format, expected PDF: "+doc.Filename),
		)
	}
	return domain.SourceDocument{Name: doc.Filename, Data: raw}, nil
}
