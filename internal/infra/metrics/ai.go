package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCostMicro,
		aiCallsLatencyMs,
		aiAttempts,
		aiProvidersDisabled,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of input units per provider/task.",
		},
		[]string{"provider", "task"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of output units per provider/task.",
		},
		[]string{"provider", "task"},
	)

	aiCostMicro = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_micro",
			Help: "Micro-units spent per provider/task on successful calls.",
		},
		[]string{"provider", "task"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "Provider attempt latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "success"},
	)

	aiAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_attempts_total",
			Help: "Provider attempts by outcome kind (ok, transient, rate_limited, ...).",
		},
		[]string{"provider", "kind"},
	)

	aiProvidersDisabled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_providers_disabled_total",
			Help: "Sticky per-run provider disables after authentication failures.",
		},
		[]string{"provider"},
	)
)

// ObserveAttempt records one provider attempt. kind is "ok" on success.
func ObserveAttempt(provider, kind string, latencyMs int64) {
	aiAttempts.WithLabelValues(norm(provider), norm(kind)).Inc()
	aiCallsLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(kind == "ok")).
		Observe(float64(latencyMs))
}

func ObserveUsage(provider, task string, tokensIn, tokensOut int, costMicro int64) {
	lbl := []string{norm(provider), norm(task)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCostMicro.WithLabelValues(lbl...).Add(float64(costMicro))
}

func ProviderDisabled(provider string) {
	aiProvidersDisabled.WithLabelValues(norm(provider)).Inc()
}
