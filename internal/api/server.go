package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryanbastic/go-sheetspace/internal/auth"
	"github.com/ryanbastic/go-sheetspace/internal/metrics"
	"github.com/ryanbastic/go-sheetspace/internal/workspace"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, repo *workspace.Repository, resolver *auth.Resolver, backends map[string]Pinger) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.Metrics)

	health := NewHealthHandler(backends, logger)
	mux.Get("/v1/livez", health.Livez)
	mux.Get("/v1/readyz", health.Readyz)
	mux.Get("/v1/health", health.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Group(func(r chi.Router) {
		r.Use(auth.Middleware(resolver))
		api := humachi.New(r, huma.DefaultConfig("Sheetspace API", "1.0.0"))
		registerWorkspaceRoutes(api, NewWorkspaceHandler(repo, logger))
	})

	return mux
}
