// Package embedcache keeps pooled embedding vectors in a badger store so
// rebuilding the index of an unchanged document skips the inference backend.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

const keyPrefix = "emb:"

// Cache wraps an Embedder. Keys bind the embedding model and the exact text.
type Cache struct {
	db    *badger.DB
	next  ports.Embedder
	model string
}

// Open opens the store at path; an empty path keeps the cache in memory.
func Open(path string, next ports.Embedder, model string) (*Cache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &Cache{db: db, next: next, model: model}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				out[i] = decodeVector(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: backend returned %d vectors for %d texts", len(fresh), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
	}

	// Cache writes are best effort; the vectors are already computed.
	if err := c.store(missTexts, fresh); err != nil {
		slog.Warn("embedding_cache_write_failed", "error", err.Error(), "vectors", len(fresh))
	}
	slog.Debug("embedding_cache_lookup", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Cache) store(texts []string, vectors [][]float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		for i, text := range texts {
			if err := txn.Set(c.key(text), encodeVector(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return append([]byte(keyPrefix), sum[:]...)
}

func encodeVector(vector []float32) []byte {
	out := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeVector(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
