package source

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_source_requests_total",
			Help: "Total number of indexer requests by method",
		},
		[]string{"method"},
	)

	requestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_source_errors_total",
			Help: "Total number of indexer request errors by method and type",
		},
		[]string{"method", "error_type"},
	)

	requestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_source_retries_total",
			Help: "Total number of retried indexer requests by method",
		},
		[]string{"method"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydra_processor_source_request_duration_seconds",
			Help:    "Duration of indexer requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func MethodInc(method string) {
	requests.WithLabelValues(method).Inc()
}

func MethodDuration(method string, duration time.Duration) {
	requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func MethodError(method, errorType string) {
	requestErrors.WithLabelValues(method, errorType).Inc()
}

func RetryInc(method string) {
	requestRetries.WithLabelValues(method).Inc()
}
