package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search engine Prometheus metrics.
var (
	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casequery",
			Name:      "engine_requests_total",
			Help:      "Total number of search engine requests",
		},
		[]string{"engine", "status"},
	)

	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casequery",
			Name:      "engine_request_duration_seconds",
			Help:      "Search engine request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"engine"},
	)

	SearchHitsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casequery",
			Name:      "search_hits_returned",
			Help:      "Hits returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50},
		},
	)
)

var registerEngineOnce sync.Once

// RegisterEngineMetrics registers search engine metrics. Safe to call more than once.
func RegisterEngineMetrics() {
	registerEngineOnce.Do(func() {
		prometheus.MustRegister(EngineRequestsTotal, EngineRequestDuration, SearchHitsReturned)
	})
}

// ObserveEngine records one engine round-trip.
func ObserveEngine(engine string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EngineRequestsTotal.WithLabelValues(engine, status).Inc()
	EngineRequestDuration.WithLabelValues(engine).Observe(seconds)
}
