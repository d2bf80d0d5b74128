package metrics

import "github.com/prometheus/client_golang/prometheus"

// Routing Prometheus metrics.
var (
	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by tier",
		},
		[]string{"tier"},
	)

	RoutingReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "routing_reviews_total",
			Help:      "Routing decisions escalated to human review, by reason",
		},
		[]string{"reason"},
	)

	AuditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "routing_audit_failures_total",
			Help:      "Audit sink write failures",
		},
		[]string{"sink"},
	)
)

var routingMetricsRegistered bool

// RegisterRoutingMetrics registers Prometheus routing metrics. Must be called once from main.
func RegisterRoutingMetrics() {
	if routingMetricsRegistered {
		return
	}
	prometheus.MustRegister(RoutingDecisionsTotal)
	prometheus.MustRegister(RoutingReviewsTotal)
	prometheus.MustRegister(AuditFailuresTotal)
	routingMetricsRegistered = true
}
