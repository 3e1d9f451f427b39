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

	IntentsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_classified_total",
			Help: "Inbound messages classified, by selected intent",
		},
		[]string{"intent"},
	)

	OutcomeUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcome_updates_total",
			Help: "Outcome reconciliation attempts, by result",
		},
		[]string{"result"},
	)

	OutcomesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcomes_finalized_total",
			Help: "Conversation outcomes written, by outcome",
		},
		[]string{"outcome"},
	)

	ConversationsAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_abandoned_total",
			Help: "Abandoned conversations, by reason",
		},
		[]string{"reason"},
	)

	TelemetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcome_telemetry_failures_total",
			Help: "Telemetry emissions that failed after an outcome write",
		},
		[]string{"event"},
	)

	SweepSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_sessions_total",
			Help: "Sessions visited by batch sweeps, by job and status",
		},
		[]string{"job", "status"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sweep_duration_seconds",
			Help: "Duration of batch sweeps in seconds",
		},
		[]string{"job"},
	)
)
