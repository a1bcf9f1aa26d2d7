package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrcapi_requests_total",
		Help: "Total upstream dispatches by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vrcapi_request_duration_seconds",
		Help:    "Upstream round-trip duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrcapi_errors_total",
		Help: "Total errors returned to callers by class",
	}, []string{"class"})

	dedupJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_dedup_joins_total",
		Help: "Total GET calls served by another caller's in-flight request",
	})

	dedupStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_dedup_stale_total",
		Help: "Total in-flight GET requests abandoned by new callers after the pending TTL",
	})

	breakerSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_circuit_breaker_suppressed_total",
		Help: "Total GET calls rejected without I/O because the endpoint recently failed",
	})

	breakerRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_circuit_breaker_records_total",
		Help: "Total 403/404 GET responses recorded as failed endpoints",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrcapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vrcapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrcapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
