// Package metrics defines the core processor's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts pipeline outcomes by source (consumer, http,
	// pubsub) and outcome (stored, rejected, malformed, failed, paused).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crnapay_core_submissions_total",
			Help: "Total number of submissions processed",
		},
		[]string{"source", "outcome"},
	)

	// ValidationErrors counts individual rule violations.
	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_core_validation_errors_total",
			Help: "Total number of validation rule violations",
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crnapay_core_pipeline_duration_seconds",
			Help:    "Duration of one pipeline run in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// DLQWrites counts dead-letter writes by reason.
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crnapay_core_dlq_writes_total",
			Help: "Total number of submissions written to the dead-letter stream",
		},
		[]string{"reason"},
	)

	DLQWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_core_dlq_write_errors_total",
			Help: "Total number of failed dead-letter writes",
		},
	)
)
