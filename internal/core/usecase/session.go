package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

// Session owns the one active index of a process. Searches share a read lock;
// loading and replacing the index take the write lock.
type Session struct {
	store ports.IndexStore

	mu    sync.RWMutex
	index ports.SearchIndex
}

func NewSession(store ports.IndexStore) *Session {
	return &Session{store: store}
}

// Index returns the active index, loading the persisted pair on first use.
func (s *Session) Index(ctx context.Context) (ports.SearchIndex, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	idx, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	s.index = idx
	slog.Info("index_loaded", "vectors", idx.Size())
	return idx, nil
}

// Replace activates a freshly built index.
func (s *Session) Replace(idx ports.SearchIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
}

// Reload re-reads the persisted pair, keeping the current index on failure.
func (s *Session) Reload(ctx context.Context) error {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload index: %w", err)
	}
	s.Replace(idx)
	slog.Info("index_reloaded", "vectors", idx.Size())
	return nil
}
