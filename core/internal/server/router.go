// Package server wires the core service's HTTP routes.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crnapay/crnapay-stack/common/middleware"
	"github.com/crnapay/crnapay-stack/core/internal/handlers"
)

// NewRouter wires HTTP routes for the core service.
func NewRouter(h *handlers.ProcessorHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/process", h.Process)
	mux.HandleFunc("POST /api/v1/pubsub/push", h.Push)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	return middleware.RequestID(mux)
}
