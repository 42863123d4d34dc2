package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool and every document store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 3 * time.Second

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	backends map[string]Pinger
	logger   *slog.Logger
}

func NewHealthHandler(backends map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, logger: logger}
}

type backendStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type readyzResponse struct {
	Status   string                   `json:"status"`
	Backends map[string]backendStatus `json:"backends,omitempty"`
}

// Livez reports the process as alive whenever it can serve HTTP.
func (h *HealthHandler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every document store backend concurrently. One failing
// backend makes the whole service unready: its users' workspaces cannot load.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		resp = readyzResponse{Status: "ok"}
	)
	if len(h.backends) > 0 {
		resp.Backends = make(map[string]backendStatus, len(h.backends))
	}

	for name, p := range h.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := p.Ping(ctx)
			status := backendStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				status.Status = "error"
				status.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Backends[name] = status
			if err != nil {
				resp.Status = "unavailable"
			}
		}()
	}
	wg.Wait()

	if resp.Status != "ok" {
		h.logger.Warn("readiness check failed", "backends", resp.Backends)
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
