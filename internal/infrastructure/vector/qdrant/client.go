package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

const upsertBatchSize = 256

// Client stores the index pair in a Qdrant collection: the vector is the point
// vector and the chunk metadata plus its position is the point payload.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Save replaces the collection with a freshly built pair.
func (c *Client) Save(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	if err := validatePair(vectors, chunks); err != nil {
		return nil, err
	}
	if err := c.dropCollection(ctx); err != nil {
		return nil, err
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}
	if err := c.upsert(ctx, 0, vectors, chunks); err != nil {
		return nil, err
	}
	return &collectionIndex{client: c, size: len(vectors), dim: len(vectors[0])}, nil
}

// Add appends points after the ones already stored.
func (c *Client) Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	if err := validatePair(vectors, chunks); err != nil {
		return nil, err
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}
	offset, err := c.count(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.upsert(ctx, offset, vectors, chunks); err != nil {
		return nil, err
	}
	return &collectionIndex{client: c, size: offset + len(vectors), dim: len(vectors[0])}, nil
}

func (c *Client) Load(ctx context.Context) (ports.SearchIndex, error) {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, c.collectionURL(""), nil, &info, "collection info")
	if status == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load qdrant index", fmt.Errorf("collection %s does not exist", c.collection))
	}
	if err != nil {
		return nil, err
	}

	size, err := c.count(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load qdrant index", fmt.Errorf("collection %s is empty", c.collection))
	}
	return &collectionIndex{client: c, size: size, dim: info.Result.Config.Params.Vectors.Size}, nil
}

func (c *Client) upsert(ctx context.Context, offset int, vectors [][]float32, chunks []domain.Chunk) error {
	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vectors))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			position := offset + i
			points = append(points, point{
				ID:     c.pointID(position),
				Vector: vectors[i],
				Payload: map[string]any{
					"position": position,
					"chunk_id": chunks[i].ChunkID,
					"page":     chunks[i].Page,
					"content":  chunks[i].Content,
					"type":     string(chunks[i].Modality),
				},
			})
		}
		if _, err := c.doJSON(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil, "upsert"); err != nil {
			return err
		}
	}
	return nil
}

// pointID is stable per collection and position so re-upserting overwrites.
func (c *Client) pointID(position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.collection+"/"+strconv.Itoa(position))).String()
}

func (c *Client) count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/count"), map[string]any{"exact": true}, &resp, "count"); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (c *Client) search(ctx context.Context, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/search"), reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				ChunkID:  getIntPayload(r.Payload, "chunk_id"),
				Page:     getIntPayload(r.Payload, "page"),
				Content:  getStringPayload(r.Payload, "content"),
				Modality: domain.Modality(getStringPayload(r.Payload, "type")),
			},
			Rank: i + 1,
			// Euclid scores are plain distances.
			Distance: r.Score * r.Score,
		})
	}
	return out, nil
}

func (c *Client) dropCollection(ctx context.Context) error {
	status, err := c.doJSON(ctx, http.MethodDelete, c.collectionURL(""), nil, nil, "drop collection")
	if status == http.StatusNotFound {
		err = nil
	}
	if err != nil {
		return err
	}
	c.ensureMu.Lock()
	c.ensuredCollection = false
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Euclid",
		},
	}
	status, err := c.doJSON(ctx, http.MethodPut, c.collectionURL(""), reqBody, nil, "ensure collection")
	// 200/201 for create, 409 if already exists (depends on version/config).
	if status == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

// doJSON returns the response status alongside any error so callers can treat
// specific statuses as success.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return resp.StatusCode, fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return resp.StatusCode, fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return resp.StatusCode, nil
}

func validatePair(vectors [][]float32, chunks []domain.Chunk) error {
	if len(vectors) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant index", errors.New("no vectors"))
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant index", fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}
	dim := len(vectors[0])
	for i, vector := range vectors {
		if len(vector) != dim || dim == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant index", fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), dim))
		}
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
