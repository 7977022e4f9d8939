package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/middleware"
)

// NewRouter constructs and returns the operational HTTP handler.
//
// Routes:
//
//	GET /healthz  → statusHandler.Healthz (liveness)
//	GET /status   → statusHandler.Status  (sync snapshot)
//	GET /metrics  → Prometheus scrape endpoint for gatherer
//
// Middleware chain (applied in order):
//  1. Recoverer turns a handler panic into a 500
//  2. WithRequestLogging(logger) logs incoming requests
func NewRouter(
	statusHandler *StatusHandler,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/healthz", statusHandler.Healthz)
	r.Get("/status", statusHandler.Status)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	return r
}
