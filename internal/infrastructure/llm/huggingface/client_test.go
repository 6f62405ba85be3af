package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/infrastructure/resilience"
)

func newTestClient(serverURL string, batchSize int) *Client {
	return New(Options{
		Token:     "hf_test",
		EmbedURL:  serverURL + "/embed",
		ChatURL:   serverURL + "/chat",
		BatchSize: batchSize,
		Executor:  resilience.NewExecutor(resilience.DefaultConfig()),
	})
}

func TestEmbedDocumentsSendsInputsAndOptions(t *testing.T) {
	var captured featureExtractionRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`[[0.1, 0.2], [0.3, 0.4]]`))
	}))
	defer server.Close()

	vectors, err := NewEmbedder(newTestClient(server.URL, 8)).EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if authHeader != "Bearer hf_test" {
		t.Fatalf("unexpected auth header %q", authHeader)
	}
	if len(captured.Inputs) != 2 || !captured.Options.WaitForModel || !captured.Options.UseCache {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if len(vectors) != 2 || vectors[1][0] != 0.3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestEmbedDocumentsPoolsTokenVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[[1, 2], [3, 4]], [[10, 0], [0, 10], [2, 2]]]`))
	}))
	defer server.Close()

	vectors, err := NewEmbedder(newTestClient(server.URL, 8)).EmbedDocuments(context.Background(), []string{"a b", "c d e"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if vectors[0][0] != 2 || vectors[0][1] != 3 {
		t.Fatalf("unexpected pooled vector 0: %v", vectors[0])
	}
	if vectors[1][0] != 4 || vectors[1][1] != 4 {
		t.Fatalf("unexpected pooled vector 1: %v", vectors[1])
	}
}

func TestEmbedDocumentsBatchesInOrder(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req featureExtractionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float32, len(req.Inputs))
		for i, input := range req.Inputs {
			out[i] = []float32{float32(len(input)), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := NewEmbedder(newTestClient(server.URL, 2)).EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 batches, got %d", calls.Load())
	}
	for i, vector := range vectors {
		if int(vector[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: %v", i, vector)
		}
	}
}

func TestEmbedDocumentsRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[0.1, 0.2]]`))
	}))
	defer server.Close()

	_, err := NewEmbedder(newTestClient(server.URL, 8)).EmbedDocuments(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestEmbedIncludesHTTPBodyInErrorWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"input too long"}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(newTestClient(server.URL, 8)).EmbedDocuments(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "input too long") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestEmbedQueryBlankSkipsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("backend must not be called for a blank query")
	}))
	defer server.Close()

	vector, err := NewEmbedder(newTestClient(server.URL, 8)).EmbedQuery(context.Background(), "  \n")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if vector == nil || len(vector) != 0 {
		t.Fatalf("expected empty vector, got %v", vector)
	}
}

func TestGeneratorSendsChatRequest(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Paris [Source 1] "}}]}`))
	}))
	defer server.Close()

	gen := NewGenerator(newTestClient(server.URL, 8), 512, 0.3)
	chunks := []domain.RetrievedChunk{
		{Chunk: domain.Chunk{Content: "Paris is the capital."}, Rank: 1},
		{Chunk: domain.Chunk{Content: "France is in Europe."}, Rank: 2},
	}
	answer, err := gen.GenerateAnswer(context.Background(), "Capital?", chunks)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "  Paris [Source 1] " {
		t.Fatalf("answer must be returned verbatim, got %q", answer)
	}
	if captured.Model != DefaultChatModel || captured.MaxTokens != 512 || captured.Temperature != 0.3 {
		t.Fatalf("unexpected request parameters: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
	want := "Context:\n[Source 1] Paris is the capital.\n\n[Source 2] France is in Europe.\n\nQuestion: Capital?"
	if captured.Messages[1].Content != want {
		t.Fatalf("unexpected user message:\n%s", captured.Messages[1].Content)
	}
	if !strings.Contains(captured.Messages[0].Content, "[Source 1]") {
		t.Fatalf("system prompt must require citations: %s", captured.Messages[0].Content)
	}
}

func TestGeneratorClassifiesBackendFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{name: "loading", status: http.StatusServiceUnavailable, body: `{"error":"Model is currently loading","estimated_time":20}`, kind: domain.ErrTemporary},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"Invalid credentials in Authorization header"}`, kind: domain.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"token lacks inference scope"}`, kind: domain.ErrUnauthorized},
		{name: "other", status: http.StatusUnprocessableEntity, body: `{"error":{"message":"bad request shape"}}`, message: "bad request shape"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"CUDA out of memory"}`, message: "CUDA out of memory"},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: `{"error":"upstream timed out"}`, message: "upstream timed out"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"quota exceeded"}`, message: "quota exceeded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewGenerator(newTestClient(server.URL, 8), 0, 0.3).GenerateAnswer(context.Background(), "q", nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.kind == nil {
				if errors.Is(err, domain.ErrTemporary) || errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("expected unclassified error, got %v", err)
				}
				if !strings.Contains(err.Error(), tc.message) {
					t.Fatalf("expected backend message %q, got %v", tc.message, err)
				}
				return
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestClassifyHFErrorRetriesTransientStatuses(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusServiceUnavailable, retryable: true},
		{status: http.StatusInternalServerError, retryable: true},
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusRequestTimeout, retryable: true},
		{status: http.StatusUnprocessableEntity, retryable: false},
		{status: http.StatusUnauthorized, retryable: false},
	}
	for _, tc := range cases {
		err := &HTTPStatusError{Operation: "generate", StatusCode: tc.status, Status: http.StatusText(tc.status), RetryAfter: time.Second}
		class := classifyHFError(err)
		if class.Retryable != tc.retryable {
			t.Fatalf("status %d: retryable = %v, want %v", tc.status, class.Retryable, tc.retryable)
		}
		if tc.retryable && class.RetryAfter != time.Second {
			t.Fatalf("status %d: retry hint dropped", tc.status)
		}
	}
}

func TestGeneratorRetriesServerErrorButKeepsMessage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"CUDA out of memory"}`))
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	cfg.Breaker.Enabled = false
	client := New(Options{Token: "hf_test", ChatURL: server.URL + "/chat", Executor: resilience.NewExecutor(cfg)})

	_, err := NewGenerator(client, 0, 0.3).GenerateAnswer(context.Background(), "q", nil)
	if err == nil || errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected unclassified error, got %v", err)
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected backend message, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestClassifyBackendErrorMessagePatterns(t *testing.T) {
	cases := map[string]error{
		"upstream said 503":            domain.ErrTemporary,
		"Model Qwen is Loading":        domain.ErrTemporary,
		"missing Authorization header": domain.ErrUnauthorized,
		"context length exceeded":      nil,
	}
	for msg, want := range cases {
		if got := classifyBackendError(errors.New(msg)); got != want {
			t.Fatalf("classifyBackendError(%q) = %v, want %v", msg, got, want)
		}
	}
	if got := classifyBackendError(context.Canceled); got != nil {
		t.Fatalf("cancellation must stay unclassified, got %v", got)
	}
}
