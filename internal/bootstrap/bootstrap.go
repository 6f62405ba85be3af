package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
	"github.com/kirillkom/multimodal-rag/internal/core/usecase"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/embedcache"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/extractor/pdfextract"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/llm/huggingface"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/vector/flat"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/vector/qdrant"
)

// Pipeline is the in-process RAG stack: extraction, embedding, the index
// pair and answering. It needs no database or broker.
type Pipeline struct {
	Config config.Config

	Session *usecase.Session
	Builder *usecase.IndexBuilder
	QueryUC *usecase.QueryUseCase

	executor *resilience.Executor
	closeFn  func()
}

// NewPipeline wires the RAG stack. observer may be nil; otherwise it receives
// circuit breaker transitions of backend calls.
func NewPipeline(_ context.Context, cfg config.Config, observer resilience.StateObserver) (*Pipeline, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg, observer))

	hf := huggingface.New(huggingface.Options{
		Token:        cfg.HFAPIToken,
		EmbedURL:     cfg.HFEmbedURL,
		EmbedModel:   cfg.HFEmbedModel,
		ChatURL:      cfg.HFChatURL,
		ChatModel:    cfg.HFChatModel,
		Timeout:      time.Duration(cfg.HFTimeoutSeconds) * time.Second,
		RateLimitRPS: float64(cfg.HFRateLimitRPS),
		BatchSize:    cfg.EmbedBatchSize,
		Executor:     executor,
	})
	if cfg.HFAPIToken == "" {
		slog.Warn("hf_token_missing", "hint", "set HF_API_TOKEN; anonymous inference requests are usually rejected")
	}

	cache, err := embedcache.Open(cfg.EmbedCachePath, huggingface.NewEmbedder(hf), hf.EmbedModel())
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	generator := huggingface.NewGenerator(hf, cfg.GenMaxTokens, cfg.GenTemperature)

	store, err := newIndexStore(cfg)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	extractors := []ports.ContentExtractor{
		pdfextract.NewTextExtractor(),
		pdfextract.NewTableExtractor(),
	}
	if image := newImageExtractor(cfg); image != nil {
		extractors = append(extractors, image)
	}

	session := usecase.NewSession(store)
	builder := usecase.NewIndexBuilder(extractors, chunking.NewWordChunker(cfg.ChunkSize), cache, store, session)
	queryUC := usecase.NewQueryUseCase(cache, session, generator, cfg.RAGTopK)

	return &Pipeline{
		Config:   cfg,
		Session:  session,
		Builder:  builder,
		QueryUC:  queryUC,
		executor: executor,
		closeFn: func() {
			if err := cache.Close(); err != nil {
				slog.Warn("embedding_cache_close_failed", "error", err.Error())
			}
		},
	}, nil
}

func (p *Pipeline) Close() {
	if p.closeFn != nil {
		p.closeFn()
	}
}

// App adds the upload registry, object storage and queue used by the API
// and worker processes.
type App struct {
	*Pipeline

	Queue     *nats.Queue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
}

func New(ctx context.Context, cfg config.Config, observer resilience.StateObserver) (*App, error) {
	pipeline, err := NewPipeline(ctx, cfg, observer)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		pipeline.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: pipeline.executor,
	})
	if err != nil {
		pipeline.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, pdfextract.NewSourceLoader(storage), pipeline.Builder, queue)

	pipelineClose := pipeline.closeFn
	pipeline.closeFn = func() {
		queue.Close()
		_ = db.Close()
		pipelineClose()
	}

	return &App{
		Pipeline:  pipeline,
		Queue:     queue,
		Repo:      repo,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
	}, nil
}

func resilienceConfig(cfg config.Config, observer resilience.StateObserver) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Retry.MaxAttempts = cfg.RetryMaxAttempts
	rc.Breaker.Enabled = cfg.BreakerEnabled
	rc.OnStateChange = observer
	return rc
}

func newIndexStore(cfg config.Config) (ports.IndexStore, error) {
	switch cfg.IndexBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	default:
		store, err := flat.NewStore(cfg.IndexDir)
		if err != nil {
			return nil, fmt.Errorf("init index store: %w", err)
		}
		return store, nil
	}
}

// newImageExtractor returns nil when OCR is disabled or tesseract is not
// available; builds then index text and tables only.
func newImageExtractor(cfg config.Config) *pdfextract.ImageExtractor {
	if !cfg.OCREnabled {
		slog.Info("ocr_disabled")
		return nil
	}
	engine, err := tesseract.New(cfg.OCRLanguageList())
	if err != nil {
		slog.Warn("ocr_unavailable", "error", err.Error())
		return nil
	}
	return pdfextract.NewImageExtractor(engine)
}
