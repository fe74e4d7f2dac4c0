package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runbroker_executions_total",
			Help: "Total number of execution requests by driver, outcome kind and failure reason.",
		},
		[]string{"driver", "kind", "failure"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runbroker_execution_duration_seconds",
			Help:    "Time from request acceptance to normalized outcome, in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"driver"},
	)

	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "runbroker_audit_write_failures_total",
			Help: "Total number of audit records that could not be written.",
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(auditWriteFailures)
}
