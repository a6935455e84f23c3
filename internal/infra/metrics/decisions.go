package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(decisionsTotal, decisionConfidence) }

var decisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_decisions_total",
		Help: "Finalized decisions, labeled by verdict and whether escalation happened.",
	},
	[]string{"verdict", "escalated"},
)

var decisionConfidence = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ingest_decision_confidence",
		Help:    "Aggregate rule confidence at finalization.",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	},
)

func ObserveDecision(verdict string, escalated bool, confidence float64) {
	lbl := "false"
	if escalated {
		lbl = "true"
	}
	decisionsTotal.WithLabelValues(norm(verdict), lbl).Inc()
	decisionConfidence.Observe(confidence)
}
