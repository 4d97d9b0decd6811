// Package observability exposes process-wide prometheus metrics for agent
// runs. Registration is idempotent so every entry point can call
// EnsureRegistered without coordination.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harun/oba/pkg/message"
)

var (
	registerOnce sync.Once

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oba_agent_runs_total",
			Help: "Agent runs by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oba_agent_run_duration_seconds",
			Help:    "Agent run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"model"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oba_tokens_total",
			Help: "Tokens consumed by model and kind.",
		},
		[]string{"model", "kind"},
	)

	costTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oba_cost_dollars_total",
			Help: "Dollar cost by model, tool costs included.",
		},
		[]string{"model"},
	)
)

// EnsureRegistered registers the metrics with the default registerer once.
func EnsureRegistered() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runsTotal, runDuration, tokensTotal, costTotal)
	})
}

// RecordRun records one completed agent run.
func RecordRun(model, outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(model, outcome).Inc()
	runDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordUsage records the token and cost accounting of one run.
func RecordUsage(model string, u message.Usage) {
	tokensTotal.WithLabelValues(model, "input").Add(float64(u.InputTokens))
	tokensTotal.WithLabelValues(model, "input_cached").Add(float64(u.InputTokensCached))
	tokensTotal.WithLabelValues(model, "output").Add(float64(u.OutputTokens))
	costTotal.WithLabelValues(model).Add(u.TotalCost)
}
