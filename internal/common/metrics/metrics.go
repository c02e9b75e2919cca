// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// TurnsProcessed counts completed turns by outcome (ok, failed).
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_turns_processed_total",
			Help: "Total number of dialogue turns processed",
		},
		[]string{"outcome", "key_metric"},
	)

	TurnsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_turns_dropped_total",
			Help: "Turn submissions dropped because another turn was in flight",
		},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_turn_duration_seconds",
			Help:    "Wall-clock duration of one turn (classify, select, compose, parse)",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"outcome"},
	)

	IntentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_intent_fallbacks_total",
			Help: "Intent classifications replaced by the neutral default",
		},
		[]string{"reason"},
	)

	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_catalog_loads_total",
			Help: "Catalog snapshot loads by source and result",
		},
		[]string{"source", "result"},
	)

	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_catalog_products",
			Help: "Active products in the current catalog snapshot",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_sessions_active",
			Help: "Number of live dialogue sessions",
		},
	)
)
