// Package metrics provides the Prometheus registry and HTTP handler for the
// API client. All metrics are defined in their respective packages (client,
// cache, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry the handler exposes.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - vrcapi_rate_window_occupancy (Gauge): Dispatches inside the rolling window
//   - vrcapi_rate_window_waits_total (Counter): Dispatches that waited for window capacity
//   - vrcapi_rate_gate_blocks_total (Counter): 429 cooldowns that closed the global gate
//   - vrcapi_rate_gate_wait_seconds (Histogram): Time callers spent waiting on the closed gate
//
// Cache Metrics (pkg/cache):
//   - vrcapi_cache_hits_total{cache} (Counter): Live entries served
//   - vrcapi_cache_misses_total{cache} (Counter): Lookups that found nothing live
//   - vrcapi_cache_evictions_total{cache} (Counter): Live entries dropped by LRU capacity
//   - vrcapi_cache_expirations_total{cache} (Counter): Entries removed after their TTL
//   - vrcapi_cache_entries{cache} (Gauge): Stored entries per cache
//   - vrcapi_cache_snapshot_operations_total{operation, result} (Counter): Snapshot saves and loads
//
// Request Metrics (pkg/client):
//   - vrcapi_requests_total{method, status} (Counter): Upstream dispatches by method and status
//   - vrcapi_request_duration_seconds{method} (Histogram): Round-trip duration by method
//   - vrcapi_errors_total{class} (Counter): Errors returned to callers by class
//   - vrcapi_dedup_joins_total (Counter): GETs served by another caller's in-flight request
//   - vrcapi_dedup_stale_total (Counter): In-flight GETs abandoned after the pending TTL
//   - vrcapi_circuit_breaker_suppressed_total (Counter): GETs rejected for a recently failed endpoint
//   - vrcapi_circuit_breaker_records_total (Counter): 403/404 GET responses recorded
//
// Retry Metrics (pkg/client):
//   - vrcapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - vrcapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - vrcapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per cache
//   sum by (cache) (rate(vrcapi_cache_hits_total[5m])) /
//   (sum by (cache) (rate(vrcapi_cache_hits_total[5m])) + sum by (cache) (rate(vrcapi_cache_misses_total[5m])))
//
//   # 429 Cooldowns
//   increase(vrcapi_rate_gate_blocks_total[1h])
//
//   # Deduplication Savings
//   rate(vrcapi_dedup_joins_total[5m]) / rate(vrcapi_requests_total{method="GET"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(vrcapi_request_duration_seconds_bucket[5m]))
