package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

// Storage keeps uploaded sources as flat files under one directory.
type Storage struct {
	root string
}

const defaultRoot = "./data/storage"

func New(root string) (*Storage, error) {
	if strings.TrimSpace(root) == "" {
		root = defaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: create %s: %w", root, err)
	}
	return &Storage{root: root}, nil
}

// Save writes through a temp file in the same directory and renames it into
// place, so a reader never sees a partial upload under key.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("localfs: temp file for %s: %w", key, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, data); err != nil {
		return fmt.Errorf("localfs: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localfs: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localfs: commit %s: %w", key, err)
	}
	committed = true
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "open stored file", err)
		}
		return nil, fmt.Errorf("localfs: open %s: %w", key, err)
	}
	return f, nil
}

// resolve accepts flat keys only; anything that could leave root is rejected.
func (s *Storage) resolve(key string) (string, error) {
	switch {
	case key == "", key == ".", key == "..",
		strings.HasPrefix(key, ".upload-"),
		strings.ContainsAny(key, `/\`),
		filepath.IsAbs(key):
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve storage key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.root, key), nil
}
