package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

func TestSessionIndexLoadsOnce(t *testing.T) {
	store := &storeFake{current: &indexFake{chunks: []domain.Chunk{{Content: "a"}}, vectors: [][]float32{{1}}}}
	session := NewSession(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := session.Index(context.Background()); err != nil {
				t.Errorf("Index() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if store.loads != 1 {
		t.Fatalf("expected single load, got %d", store.loads)
	}
}

func TestSessionIndexNotFound(t *testing.T) {
	session := NewSession(&storeFake{})

	_, err := session.Index(context.Background())
	if !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}

func TestSessionReloadKeepsIndexOnFailure(t *testing.T) {
	first := &indexFake{chunks: []domain.Chunk{{Content: "a"}}}
	store := &storeFake{current: first}
	session := NewSession(store)
	if _, err := session.Index(context.Background()); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	store.loadErr = errors.New("metadata truncated")
	if err := session.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}
	idx, _ := session.Index(context.Background())
	if idx != first {
		t.Fatalf("expected first index to stay active")
	}

	second := &indexFake{chunks: []domain.Chunk{{Content: "a"}, {Content: "b"}}}
	store.loadErr = nil
	store.current = second
	if err := session.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	idx, _ = session.Index(context.Background())
	if idx.Size() != 2 {
		t.Fatalf("expected reloaded index, got size %d", idx.Size())
	}
}
