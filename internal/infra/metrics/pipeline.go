package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stepAttemptsTotal, stepLatencyMs, runsTotal, runDurationMs, resourcesReleased)
}

var (
	stepAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_step_attempts_total",
			Help: "Step execution attempts by step name and outcome.",
		},
		[]string{"step", "outcome"}, // outcome: success|failure|timeout
	)

	stepLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_step_latency_ms",
			Help:    "Per-attempt step latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
		},
		[]string{"step", "success"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by terminal status (completed/failed).",
		},
		[]string{"status"},
	)

	runDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_ms",
			Help:    "Whole-run duration distribution in milliseconds.",
			Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
		},
	)

	resourcesReleased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_resources_released_total",
			Help: "Temporary resources released during compensation, by result.",
		},
		[]string{"result"}, // released|failed
	)
)

func ObserveStepAttempt(step, outcome string, latencyMs int64, success bool) {
	stepAttemptsTotal.WithLabelValues(norm(step), norm(outcome)).Inc()
	stepLatencyMs.WithLabelValues(norm(step), strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func IncRun(status string, durationMs int64) {
	runsTotal.WithLabelValues(norm(status)).Inc()
	runDurationMs.Observe(float64(durationMs))
}

func IncResourceRelease(result string) {
	resourcesReleased.WithLabelValues(norm(result)).Inc()
}
