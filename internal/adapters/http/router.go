package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirillkom/multimodal-rag/internal/config"
	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
	"github.com/kirillkom/multimodal-rag/internal/observability/metrics"
)

const (
	serviceName      = "rag-api"
	maxUploadBytes   = 64 << 20
	backpressureWait = 250 * time.Millisecond
)

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	query   ports.DocumentQueryService
	docs    ports.DocumentReader
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	query ports.DocumentQueryService,
	docs ports.DocumentReader,
) *Router {
	return &Router{
		cfg:    cfg,
		ingest: ingest,
		query:  query,
		docs:   docs,
	}
}

// WithMetrics enables the prometheus middleware and the /metrics route.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, backpressureWait, rt.rejected)
		})
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected)
		})

		r.Post("/v1/documents", rt.uploadDocument)
		r.Get("/v1/documents/{id}", rt.getDocumentByID)
		r.Post("/v1/rag/query", rt.queryRAG)
	})
	return r
}

func (rt *Router) rejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.ingest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "document upload is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type queryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

type sourceResponse struct {
	Rank     int     `json:"rank"`
	ChunkID  int     `json:"chunk_id"`
	Page     int     `json:"page"`
	Modality string  `json:"modality"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

type queryResponse struct {
	Answer  string           `json:"answer"`
	Status  string           `json:"status"`
	Sources []sourceResponse `json:"sources"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	if req.K < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k must not be negative"})
		return
	}

	started := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.Question, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, string(answer.Status), len(answer.Sources), time.Since(started))
	}

	writeJSON(w, http.StatusOK, toQueryResponse(answer))
}

func toQueryResponse(answer *domain.Answer) queryResponse {
	sources := make([]sourceResponse, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, sourceResponse{
			Rank:     src.Rank,
			ChunkID:  src.ChunkID,
			Page:     src.Page,
			Modality: string(src.Modality),
			Content:  src.Content,
			Distance: src.Distance,
		})
	}
	return queryResponse{
		Answer:  answer.Text,
		Status:  string(answer.Status),
		Sources: sources,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
