package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	workerSpawnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cellbook_worker_spawn_seconds",
			Help:    "Duration of starting a worker process, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cellbook_worker_active",
			Help: "Number of currently running worker processes.",
		},
	)

	workerRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cellbook_worker_restarts_total",
			Help: "Total number of worker processes discarded after a transport failure or missed deadline.",
		},
	)
)

func init() {
	prometheus.MustRegister(workerSpawnDuration)
	prometheus.MustRegister(activeWorkers)
	prometheus.MustRegister(workerRestartsTotal)
}
