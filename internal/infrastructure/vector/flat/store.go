package flat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

// Store persists one index pair in a directory. Writes are serialized; the
// vector file is replaced before the metadata file.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "./data/index"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) VectorsPath() string {
	return filepath.Join(s.dir, VectorsFileName)
}

func (s *Store) MetadataPath() string {
	return filepath.Join(s.dir, MetaFileName)
}

func (s *Store) Save(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	idx, err := Build(vectors, chunks)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, idx); err != nil {
		return nil, err
	}
	slog.Info("index_saved", "dir", s.dir, "vectors", idx.Size(), "dimension", idx.Dimension())
	return idx, nil
}

// Add appends to the persisted pair. Without a persisted pair it builds a new one.
func (s *Store) Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		idx, err = Build(vectors, chunks)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := idx.append(vectors, chunks); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, idx); err != nil {
		return nil, err
	}
	slog.Info("index_appended", "dir", s.dir, "added", len(vectors), "vectors", idx.Size())
	return idx, nil
}

func (s *Store) Load(_ context.Context) (ports.SearchIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Store) load() (*Index, error) {
	vectorsFile, vecErr := os.Open(s.VectorsPath())
	if vecErr == nil {
		defer vectorsFile.Close()
	}
	metaFile, metaErr := os.Open(s.MetadataPath())
	if metaErr == nil {
		defer metaFile.Close()
	}

	vecMissing := errors.Is(vecErr, fs.ErrNotExist)
	metaMissing := errors.Is(metaErr, fs.ErrNotExist)
	switch {
	case vecMissing && metaMissing:
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", fmt.Errorf("no index in %s", s.dir))
	case vecMissing:
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", errors.New("metadata file present without vector file"))
	case metaMissing:
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", errors.New("vector file present without metadata file"))
	case vecErr != nil:
		return nil, fmt.Errorf("open vector file: %w", vecErr)
	case metaErr != nil:
		return nil, fmt.Errorf("open metadata file: %w", metaErr)
	}

	dim, vectors, err := readVectors(vectorsFile)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}
	meta, err := readMetadata(metaFile)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}
	if meta.Count != len(vectors) || len(meta.Chunks) != len(vectors) || meta.Dimension != dim {
		return nil, domain.WrapError(
			domain.ErrIndexInconsistent,
			"load index",
			fmt.Errorf("vector file has %d x %d, metadata has %d chunks of dimension %d", len(vectors), dim, len(meta.Chunks), meta.Dimension),
		)
	}

	idx, err := Build(vectors, meta.Chunks)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}
	return idx, nil
}

func (s *Store) persist(ctx context.Context, idx *Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeFileAtomic(s.VectorsPath(), func(w io.Writer) error { return writeVectors(w, idx) }); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	if err := writeFileAtomic(s.MetadataPath(), func(w io.Writer) error { return writeMetadata(w, idx) }); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}
