package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Generator and expansion Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "generation_requests_total",
			Help:      "Total number of text generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casequery",
			Name:      "generation_request_duration_seconds",
			Help:      "Text generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider", "model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion"
	)

	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "generation_errors_total",
			Help:      "Total text generation errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	GenerationBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "casequery",
			Name:      "generation_budget_tokens_remaining",
			Help:      "Remaining generation token budget",
		},
		[]string{"provider", "period"},
	)

	ExpansionAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casequery",
			Name:      "expansion_attempts",
			Help:      "Generator calls spent per expansion",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	ExpansionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "expansions_total",
			Help:      "Query expansions by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded"
	)

	ExpansionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "expansion_cache_total",
			Help:      "Expansion cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerGenerationOnce sync.Once

// RegisterGenerationMetrics registers generator and expansion metrics. Safe to call more than once.
func RegisterGenerationMetrics() {
	registerGenerationOnce.Do(func() {
		prometheus.MustRegister(
			GenerationRequestsTotal,
			GenerationRequestDuration,
			GenerationTokensTotal,
			GenerationErrorsTotal,
			GenerationBudgetTokensRemaining,
			ExpansionAttempts,
			ExpansionsTotal,
			ExpansionCacheTotal,
		)
	})
}
