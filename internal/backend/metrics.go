package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call labels for runner requests.
const (
	CallExecute = "execute"
	CallSubmit  = "submit"
	CallPoll    = "poll"
)

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	endpointCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runbroker_runner_calls_total",
			Help: "Total number of outbound runner calls by driver, endpoint, call and result.",
		},
		[]string{"driver", "endpoint", "call", "result"},
	)

	endpointCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runbroker_runner_call_duration_seconds",
			Help:    "Duration of individual outbound runner calls, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "call"},
	)

	pollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runbroker_poll_attempts",
			Help:    "Number of poll attempts spent per submission.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(endpointCallsTotal)
	prometheus.MustRegister(endpointCallDuration)
	prometheus.MustRegister(pollAttempts)
}

// ObserveCall records one outbound runner call that started at start.
func ObserveCall(driver, endpoint, call string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	endpointCallsTotal.WithLabelValues(driver, endpoint, call, result).Inc()
	endpointCallDuration.WithLabelValues(driver, call).Observe(time.Since(start).Seconds())
}

// ObservePollAttempts records how many poll attempts a submission consumed.
func ObservePollAttempts(n int) {
	pollAttempts.Observe(float64(n))
}
