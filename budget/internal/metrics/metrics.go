// Package metrics defines the budget monitor's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal counts budget notifications by decided level.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crnapay_budget_notifications_total",
			Help: "Total number of budget notifications handled",
		},
		[]string{"level"},
	)

	// CostRatio is the most recent cost ratio per budget.
	CostRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crnapay_budget_cost_ratio",
			Help: "Most recent reported cost as a fraction of the budget",
		},
		[]string{"budget"},
	)

	PausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crnapay_budget_pauses_total",
			Help: "Total number of pauses requested per target",
		},
		[]string{"target"},
	)

	ResumesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crnapay_budget_resumes_total",
			Help: "Total number of targets resumed",
		},
	)
)
