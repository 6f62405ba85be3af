package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	doc         *domain.Document
	created     *domain.Document
	createErr   error
	getErr      error
	statsErr    error
	statusErr   error
	statusCalls []statusCall
	stats       domain.IngestionStats
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status != domain.StatusFailed && f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *repoFake) SaveStats(_ context.Context, _ string, stats domain.IngestionStats) error {
	if f.statsErr != nil {
		return f.statsErr
	}
	f.stats = stats
	return nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	ingested   string
	rebuilt    string
	publishErr error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.ingested = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) PublishIndexRebuilt(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.rebuilt = documentID
	return nil
}

func (f *queueFake) SubscribeIndexRebuilt(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type loaderFake struct {
	src domain.SourceDocument
	err error
}

func (f *loaderFake) Load(context.Context, *domain.Document) (domain.SourceDocument, error) {
	if f.err != nil {
		return domain.SourceDocument{}, f.err
	}
	return f.src, nil
}

type extractorFake struct {
	modality domain.Modality
	units    []domain.RawContentUnit
	err      error
}

func (f *extractorFake) Modality() domain.Modality { return f.modality }

func (f *extractorFake) Extract(context.Context, domain.SourceDocument) ([]domain.RawContentUnit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.units, nil
}

// sentenceChunker emits one chunk per sentence ending in ".".
type sentenceChunker struct{}

func (sentenceChunker) Chunk(content string, page int, modality domain.Modality) []domain.Chunk {
	var out []domain.Chunk
	for _, part := range strings.Split(content, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, domain.Chunk{Page: page, Content: part, Modality: modality})
	}
	return out
}

// lengthEmbedder maps text to a 2-d vector of (length, 1).
type lengthEmbedder struct {
	err      error
	queryErr error
	query    string
	empty    bool
	short    bool
}

func (f *lengthEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *lengthEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.empty {
		return []float32{}, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

type indexFake struct {
	vectors [][]float32
	chunks  []domain.Chunk
	lastK   int
}

func (f *indexFake) Size() int { return len(f.chunks) }

func (f *indexFake) Search(_ context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
	f.lastK = k
	if k > len(f.chunks) {
		k = len(f.chunks)
	}
	out := make([]domain.RetrievedChunk, 0, k)
	for i := 0; i < k; i++ {
		d := float64(query[0] - f.vectors[i][0])
		out = append(out, domain.RetrievedChunk{Chunk: f.chunks[i], Rank: i + 1, Distance: d * d})
	}
	return out, nil
}

type storeFake struct {
	mu      sync.Mutex
	current *indexFake
	saves   int
	loads   int
	saveErr error
	loadErr error
}

func (f *storeFake) Save(_ context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saves++
	f.current = &indexFake{vectors: vectors, chunks: chunks}
	return f.current, nil
}

func (f *storeFake) Load(context.Context) (ports.SearchIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.current == nil {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", errors.New("no index"))
	}
	return f.current, nil
}

type appendingStoreFake struct {
	storeFake
}

func (f *appendingStoreFake) Add(_ context.Context, vectors [][]float32, chunks []domain.Chunk) (ports.SearchIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		f.current = &indexFake{}
	}
	next := &indexFake{
		vectors: append(append([][]float32{}, f.current.vectors...), vectors...),
		chunks:  append(append([]domain.Chunk{}, f.current.chunks...), chunks...),
	}
	f.current = next
	return next, nil
}

type generatorFake struct {
	answer   string
	err      error
	question string
	chunks   []domain.RetrievedChunk
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	f.question = question
	f.chunks = chunks
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
