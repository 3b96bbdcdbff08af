package notebook

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for run outcomes.
const (
	outcomeOK           = "ok"
	outcomeCodeFault    = "code_fault"
	outcomePlannerFault = "planner_fault"
	outcomeStorageFault = "storage_fault"
	outcomeAborted      = "aborted"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellbook_pipeline_runs_total",
			Help: "Total number of agent pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)

	pipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellbook_pipeline_stage_seconds",
			Help:    "Duration of each pipeline stage, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	cellSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cellbook_cell_stream_subscribers",
			Help: "Number of clients streaming appended cells.",
		},
	)
)

func init() {
	prometheus.MustRegister(pipelineRunsTotal)
	prometheus.MustRegister(pipelineStageDuration)
	prometheus.MustRegister(cellSubscribers)

	for _, o := range []string{outcomeOK, outcomeCodeFault, outcomePlannerFault, outcomeStorageFault, outcomeAborted} {
		pipelineRunsTotal.WithLabelValues(o)
	}
}
