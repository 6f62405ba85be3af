package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/observability/metrics"
)

// recordingIngestor accepts any non-empty body and remembers what it got.
type recordingIngestor struct {
	filename string
	mimeType string
	size     int
}

func (r *recordingIngestor) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	r.filename, r.mimeType, r.size = filename, mimeType, len(raw)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

func multipartUpload(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzSetsRequestID(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, queryFake{}, docsErrFake{}).Handler()

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	assert.Equal(t, "trace-42", serve(handler, req).Header().Get(requestIDHeader))
}

func TestUploadDocumentAccepted(t *testing.T) {
	ingestor := &recordingIngestor{}
	handler := NewRouter(config.Config{}, ingestor, queryFake{}, docsErrFake{}).Handler()

	res := serve(handler, multipartUpload(t, "file", "report.pdf", []byte("%PDF-1.4\n")))
	require.Equal(t, http.StatusAccepted, res.Code)

	var doc domain.Document
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, domain.StatusUploaded, doc.Status)
	assert.Equal(t, "report.pdf", ingestor.filename)
	assert.Equal(t, 9, ingestor.size)
}

func TestUploadDocumentRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("plain-text"))
				req.Header.Set("Content-Type", "text/plain")
				return req
			},
		},
		{
			name: "wrong field",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "document", "report.pdf", []byte("%PDF-1.4"))
			},
		},
		{
			name: "empty file",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "report.pdf", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, &recordingIngestor{}, queryFake{}, docsErrFake{}).Handler()
			assert.Equal(t, http.StatusBadRequest, serve(handler, tt.req(t)).Code)
		})
	}
}

func TestUploadWithoutIngestorIs503(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, queryFake{}, docsErrFake{}).Handler()

	res := serve(handler, multipartUpload(t, "file", "report.pdf", []byte("%PDF-1.4")))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestDocumentsRouteRejectsGet(t *testing.T) {
	handler := NewRouter(config.Config{}, &recordingIngestor{}, queryFake{}, docsErrFake{}).Handler()

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestMetricsLabelRequestsByRoutePattern(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := NewRouter(config.Config{}, nil, queryFake{}, docsErrFake{}).WithMetrics(m).Handler()

	serve(handler, httptest.NewRequest(http.MethodGet, "/v1/documents/abc-123", nil))

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `path="/v1/documents/{id}"`)
	assert.NotContains(t, body, "abc-123")
}
