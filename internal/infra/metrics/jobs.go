package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsReapedTotal, jobQueueDepth) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_jobs_processed_total",
		Help: "Total ingestion jobs finished by a worker, labeled by outcome.",
	},
	[]string{"outcome"}, // completed, retried, failed_terminal, cancelled
)

var jobsReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ingest_jobs_reaped_total",
		Help: "Jobs returned to pending after a lease expired.",
	},
)

var jobQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ingest_job_queue_depth",
		Help: "Pending jobs at the last poll.",
	},
)

func IncJob(outcome string) {
	jobsProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddReaped(n int) {
	jobsReapedTotal.Add(float64(n))
}

func SetQueueDepth(n int) {
	jobQueueDepth.Set(float64(n))
}
