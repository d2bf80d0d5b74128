package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	// AdapterOutcomesTotal counts adapter runs by the state they finished in.
	AdapterOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "retrieval_adapter_outcomes_total",
			Help:      "Search adapter runs by final state",
		},
		[]string{"adapter", "state"},
	)

	AdapterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbroute",
			Name:      "retrieval_adapter_duration_seconds",
			Help:      "Search adapter duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"adapter"},
	)

	RetrievalCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "retrieval_cache_total",
			Help:      "Fused result cache hits and misses",
		},
		[]string{"result"},
	)

	RetrievalEarlyExitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "retrieval_early_exits_total",
			Help:      "Retrievals answered from the lexical adapter alone",
		},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(AdapterOutcomesTotal)
	prometheus.MustRegister(AdapterDuration)
	prometheus.MustRegister(RetrievalCacheTotal)
	prometheus.MustRegister(RetrievalEarlyExitsTotal)
	retrievalMetricsRegistered = true
}
