package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

type ingestErrFake struct {
	err error
}

func (f ingestErrFake) Upload(context.Context, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

type queryFake struct {
	err    error
	answer *domain.Answer
	gotK   *int
}

func (f queryFake) Answer(_ context.Context, _ string, k int) (*domain.Answer, error) {
	if f.gotK != nil {
		*f.gotK = k
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", Status: domain.AnswerOK}, nil
}

type docsErrFake struct {
	err error
}

func (f docsErrFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: "a.pdf", MimeType: "application/pdf", StoragePath: "a", Status: domain.StatusReady}, nil
}

func postQuery(t *testing.T, handler http.Handler, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestQueryRagMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{
			name:     "invalid input",
			err:      domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad query")),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing index",
			err:      domain.WrapError(domain.ErrIndexNotFound, "load index", errors.New("vectors.idx")),
			wantCode: http.StatusNotFound,
			wantText: "upload a document first",
		},
		{
			name:     "inconsistent index",
			err:      domain.WrapError(domain.ErrIndexInconsistent, "load index", errors.New("count mismatch")),
			wantCode: http.StatusConflict,
			wantText: "rebuild the index",
		},
		{
			name:     "embedding backend down",
			err:      domain.WrapError(domain.ErrTemporary, "embed query", errors.New("503")),
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(config.Config{RAGTopK: 4}, nil, queryFake{err: tc.err}, docsErrFake{}).Handler()
			res := postQuery(t, handler, map[string]any{"question": "test"})
			if res.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, res.Code)
			}
			if tc.wantText != "" && !strings.Contains(res.Body.String(), tc.wantText) {
				t.Fatalf("expected %q in body, got %s", tc.wantText, res.Body.String())
			}
		})
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{RAGTopK: 4},
		nil,
		queryFake{},
		docsErrFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		ingestErrFake{err: domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("only PDF documents are supported"))},
		queryFake{},
		docsErrFake{},
	).Handler()

	res := serve(handler, multipartUpload(t, "file", "notes.txt", []byte("hello")))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
