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

	// ChecklistGenerations counts finished generation runs. outcome is
	// ready, fallback or failed.
	ChecklistGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_generations_total",
			Help: "Document checklist generation runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_llm_calls_total",
			Help: "LLM completion calls by mode and result",
		},
		[]string{"mode", "result"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checklist_llm_call_duration_seconds",
			Help:    "LLM completion latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"mode"},
	)

	ParsedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_llm_responses_total",
			Help: "Parsed LLM responses by detected format",
		},
		[]string{"format"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_fallbacks_total",
			Help: "Deterministic fallbacks by mode and reason",
		},
		[]string{"mode", "reason"},
	)

	StaleRegenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checklist_stale_regenerations_total",
			Help: "Ready checklists regenerated after a new rule set was approved",
		},
	)

	ClaimsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checklist_claims_lost_total",
			Help: "Generation claims lost to a concurrent request",
		},
	)

	DiscardedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checklist_discarded_results_total",
			Help: "Late generation results discarded because a newer generation owns the artifact",
		},
	)
)
