package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetspace/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"key": "value"}
	writeJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["key"] != "value" {
		t.Errorf("body: got %v", got)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "invalid input" {
		t.Errorf("error message: got %q, want %q", resp.Error, "invalid input")
	}
}

func TestStoreError_StatusMapping(t *testing.T) {
	h := NewWorkspaceHandler(nil, testLogger())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"circuit open", fmt.Errorf("read workspace document: %w", circuitbreaker.ErrCircuitOpen), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"corrupt document", fmt.Errorf("decode: %w", storage.ErrInvalidDocument), http.StatusInternalServerError},
		{"other", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.storeError(tt.err, "failed", "user_id", "u1")
			var se huma.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected huma.StatusError, got %T", err)
			}
			if se.GetStatus() != tt.want {
				t.Errorf("status: got %d, want %d", se.GetStatus(), tt.want)
			}
		})
	}
}
