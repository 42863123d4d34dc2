package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetspace/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// storeError logs a repository failure and maps it to an HTTP error. A
// tripped breaker or an expired deadline is reported as 503 so clients
// retry; anything else is a 500.
func (h *WorkspaceHandler) storeError(err error, msg string, args ...any) error {
	h.logger.Error(msg, append(args, "error", err)...)
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("document store unavailable")
	case errors.Is(err, storage.ErrInvalidDocument):
		return huma.Error500InternalServerError("stored workspace is corrupt")
	default:
		return huma.Error500InternalServerError(msg)
	}
}
