// Package metrics defines the ingest service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts intake responses by endpoint and status
	// (accepted, rejected, malformed, paused, rate_limited, publish_failed).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crnapay_ingest_submissions_total",
			Help: "Total number of submissions received",
		},
		[]string{"endpoint", "status"},
	)

	SubmissionBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_ingest_submission_bytes_total",
			Help: "Total bytes of submission data received",
		},
	)

	// Validation metrics
	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_ingest_validation_errors_total",
			Help: "Total number of rule violations reported to submitters",
		},
	)

	// Publish metrics
	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crnapay_ingest_publish_duration_seconds",
			Help:    "Duration of JetStream publishes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_ingest_publish_errors_total",
			Help: "Total number of failed JetStream publishes",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_ingest_rate_limit_hits_total",
			Help: "Total number of requests refused by the rate limiter",
		},
	)
)
