package web

// respond.go centralizes response rendering: successes as JSON, errors as
// a JSON envelope with the technical detail logged server-side under the
// request ID rather than leaked to the client.

import (
	"encoding/json"
	"errors"
	"net/http"

	"cohort/internal/identity"
	"cohort/internal/importer"
	"cohort/internal/logging"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError logs the technical error and returns a client-safe message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
	)
	respondJSON(w, status, ErrorResponse{Error: userMessage(err, status)})
}

// userMessage maps known error classes to stable client-facing text.
func userMessage(err error, status int) string {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return "not found"
	case errors.Is(err, importer.ErrTooManyImports):
		return importer.ErrTooManyImports.Error()
	case status >= 500:
		return "internal error"
	default:
		return err.Error()
	}
}
