package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(advisorCallsTotal, advisorLatencyMs) }

var advisorCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_advisor_calls_total",
		Help: "AI advisor consultations, labeled by provider and outcome.",
	},
	[]string{"provider", "outcome"}, // ok, unavailable
)

var advisorLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ingest_advisor_latency_ms",
		Help:    "AI advisor call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"provider"},
)

func ObserveAdvisorCall(provider string, ok bool, latencyMs int) {
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	advisorCallsTotal.WithLabelValues(norm(provider), outcome).Inc()
	advisorLatencyMs.WithLabelValues(norm(provider)).Observe(float64(latencyMs))
}
