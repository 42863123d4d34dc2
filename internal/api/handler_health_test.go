package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/storage"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

// --- Mock Pinger ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func newTestServer(backends map[string]Pinger) http.Handler {
	repo := workspace.New(storage.NewMemoryStore(), testLogger())
	return NewServer(testLogger(), repo, auth.NewResolver("test-secret"), backends)
}

// --- Livez ---

func TestLivez_ReturnsOK(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/livez", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status: got %q, want %q", resp["status"], "ok")
	}
}

// --- Readyz ---

func TestReadyz_NoBackends_ReturnsOK(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	backends := map[string]Pinger{
		"shard-0": &mockPinger{},
		"shard-1": &mockPinger{},
	}
	server := newTestServer(backends)

	req := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if len(resp.Backends) != 2 {
		t.Fatalf("backends: got %d, want 2", len(resp.Backends))
	}
	for name, bs := range resp.Backends {
		if bs.Status != "ok" {
			t.Errorf("backend %s: got %q, want %q", name, bs.Status, "ok")
		}
	}
}

func TestReadyz_OneBackendDown(t *testing.T) {
	backends := map[string]Pinger{
		"shard-0": &mockPinger{},
		"shard-1": &mockPinger{err: errors.New("connection refused")},
	}
	server := newTestServer(backends)

	req := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d\nbody: %s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unavailable" {
		t.Errorf("status: got %q, want %q", resp.Status, "unavailable")
	}
	if resp.Backends["shard-0"].Status != "ok" {
		t.Errorf("shard-0: got %q, want %q", resp.Backends["shard-0"].Status, "ok")
	}
	if resp.Backends["shard-1"].Status != "error" {
		t.Errorf("shard-1: got %q, want %q", resp.Backends["shard-1"].Status, "error")
	}
	if resp.Backends["shard-1"].Error != "connection refused" {
		t.Errorf("shard-1 error: got %q", resp.Backends["shard-1"].Error)
	}
}

// --- /v1/health alias ---

func TestHealth_BehavesAsReadyz(t *testing.T) {
	backends := map[string]Pinger{
		"shard-0": &mockPinger{},
	}
	server := newTestServer(backends)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}

	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if resp.Backends["shard-0"].Status != "ok" {
		t.Errorf("shard-0: got %q, want %q", resp.Backends["shard-0"].Status, "ok")
	}
}

func TestReadyz_BlockedBackendFailsWhenRequestEnds(t *testing.T) {
	backends := map[string]Pinger{
		"redis": pingerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}
	h := NewHealthHandler(backends, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/readyz", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.Readyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}
}
