package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classification Prometheus metrics.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "classifications_total",
			Help:      "Classified queries by category and deciding stage",
		},
		[]string{"category", "source"},
	)

	EnrichmentOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "classification_enrichment_total",
			Help:      "LLM enrichment attempts by final state",
		},
		[]string{"state"},
	)
)

var classificationMetricsRegistered bool

// RegisterClassificationMetrics registers Prometheus classification metrics. Must be called once from main.
func RegisterClassificationMetrics() {
	if classificationMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(EnrichmentOutcomesTotal)
	classificationMetricsRegistered = true
}
