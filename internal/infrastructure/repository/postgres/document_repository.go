package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const documentColumns = `id, filename, mime_type, storage_path, status, error_message, stats, created_at, updated_at`

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	stats, err := json.Marshal(doc.Stats)
	if err != nil {
		return fmt.Errorf("encode stats of %s: %w", doc.ID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rag_documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Status), doc.Error,
		stats, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM rag_documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var (
		doc    domain.Document
		status string
		stats  []byte
	)
	if err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &status, &doc.Error,
		&stats, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &doc.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	return r.update(ctx, "update document status", id,
		`UPDATE rag_documents SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		string(status), errMessage, r.now())
}

func (r *DocumentRepository) SaveStats(ctx context.Context, id string, stats domain.IngestionStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats of %s: %w", id, err)
	}
	return r.update(ctx, "save ingestion stats", id,
		`UPDATE rag_documents SET stats = $2, updated_at = $3 WHERE id = $1`,
		raw, r.now())
}

// update runs a single-row UPDATE keyed by id; zero affected rows means the
// document does not exist.
func (r *DocumentRepository) update(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
