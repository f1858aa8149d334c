package httpadapter

import (
	"net/http"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	noteError(w, err)
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
