// Package huggingface talks to the Hugging Face inference router: feature
// extraction for embeddings and chat completions for answers.
package huggingface

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/multimodal-rag/internal/infrastructure/resilience"
)

const (
	DefaultEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbedURL   = "https://router.huggingface.co/hf-inference/models/" + DefaultEmbedModel + "/pipeline/feature-extraction"
	DefaultChatModel  = "Qwen/Qwen2.5-7B-Instruct"
	DefaultChatURL    = "https://router.huggingface.co/v1/chat/completions"

	defaultBatchSize = 32
)

type Options struct {
	Token      string
	EmbedURL   string
	EmbedModel string
	ChatURL    string
	ChatModel  string
	Timeout    time.Duration
	// RateLimitRPS paces outbound requests; zero disables pacing.
	RateLimitRPS float64
	BatchSize    int
	Executor     *resilience.Executor
	HTTPClient   *http.Client
}

// Client holds the credentials and transport shared by Embedder and Generator.
type Client struct {
	token      string
	embedURL   string
	embedModel string
	chatURL    string
	chatModel  string
	batchSize  int
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(opts Options) *Client {
	if opts.EmbedURL == "" {
		opts.EmbedURL = DefaultEmbedURL
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = DefaultEmbedModel
	}
	if opts.ChatURL == "" {
		opts.ChatURL = DefaultChatURL
	}
	if opts.ChatModel == "" {
		opts.ChatModel = DefaultChatModel
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		token:      strings.TrimSpace(opts.Token),
		embedURL:   strings.TrimRight(opts.EmbedURL, "/"),
		embedModel: opts.EmbedModel,
		chatURL:    strings.TrimRight(opts.ChatURL, "/"),
		chatModel:  opts.ChatModel,
		batchSize:  opts.BatchSize,
		httpClient: httpClient,
		limiter:    limiter,
		executor:   opts.Executor,
	}
}

// EmbedModel identifies the vector space; cached vectors are keyed by it.
func (c *Client) EmbedModel() string {
	return c.embedModel
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, "hf."+operation, fn, classifyHFError)
	}
	return wrapBackendError("hf "+operation, err)
}
