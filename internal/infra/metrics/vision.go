package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(visionCallsLatencyMs, visionPromptTokens, visionUnparseable)
}

var (
	visionCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vision_calls_latency_ms",
			Help:    "Vision provider call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	visionPromptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_prompt_tokens",
			Help: "Estimated prompt tokens sent per provider/model.",
		},
		[]string{"provider", "model"},
	)

	visionUnparseable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_unparseable_total",
			Help: "Provider responses that could not be parsed into an analysis.",
		},
		[]string{"provider"},
	)
)

func ObserveVisionCall(provider, model string, promptTokens int, latencyMs int64, success bool) {
	visionCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
	if promptTokens > 0 {
		visionPromptTokens.WithLabelValues(norm(provider), norm(model)).Add(float64(promptTokens))
	}
}

func IncVisionUnparseable(provider string) {
	visionUnparseable.WithLabelValues(norm(provider)).Inc()
}
