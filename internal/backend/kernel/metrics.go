package kernel

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for execution results.
const (
	resultOK      = "ok"
	resultFaulted = "faulted"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellbook_kernel_executions_total",
			Help: "Total number of code executions by result.",
		},
		[]string{"result"},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cellbook_kernel_execution_seconds",
			Help:    "Wall time of a single code execution, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)

	executionsTotal.WithLabelValues(resultOK)
	executionsTotal.WithLabelValues(resultFaulted)
}
