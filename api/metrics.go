package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcomes.
const (
	outcomeCreated      = "created"
	outcomeDeduplicated = "deduplicated"
	outcomeRejected     = "rejected"
	outcomeFailed       = "failed"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands handled, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tally",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// overdueSchedules is only written by the DueScheduler goroutine.
	overdueSchedules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tally",
			Subsystem: "recurring",
			Name:      "overdue_schedules",
			Help:      "Active recurring schedules whose due date has passed.",
		},
	)
)
