package httpadapter

import (
	"net/http"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexInconsistent):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage adds the operator hint for index state problems.
func errorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return "no index has been built yet; upload a document first: " + err.Error()
	case domain.IsKind(err, domain.ErrIndexInconsistent):
		return "index files are inconsistent; rebuild the index: " + err.Error()
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": errorMessage(err)})
}
