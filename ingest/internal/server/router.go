// Package server wires the ingest service's HTTP routes.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crnapay/crnapay-stack/common/middleware"
	"github.com/crnapay/crnapay-stack/ingest/internal/handlers"
)

// NewRouter constructs a ServeMux with ingest API routes registered.
func NewRouter(h *handlers.SubmissionHandler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	// Submission endpoints; the first path is the one the web form posts to.
	mux.HandleFunc("POST /submit-crna-compensation", h.Submit)
	mux.HandleFunc("POST /api/v1/submissions", h.Submit)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
