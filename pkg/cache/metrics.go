package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks live reads by cache name
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrcapi_cache_hits_total",
			Help: "Total number of entity cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks absent or expired reads by cache name
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrcapi_cache_misses_total",
			Help: "Total number of entity cache misses",
		},
		[]string{"cache"},
	)

	// CacheEvictions tracks LRU evictions by cache name
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrcapi_cache_evictions_total",
			Help: "Total number of entries evicted to stay within max entries",
		},
		[]string{"cache"},
	)

	// CacheExpirations tracks entries dropped because their TTL elapsed
	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrcapi_cache_expirations_total",
			Help: "Total number of entries removed after their TTL elapsed",
		},
		[]string{"cache"},
	)

	// CacheEntries tracks the number of stored entries by cache name
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vrcapi_cache_entries",
			Help: "Current number of entries held per entity cache",
		},
		[]string{"cache"},
	)

	// SnapshotOperations tracks snapshot saves and loads
	SnapshotOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vrcapi_cache_snapshot_operations_total",
			Help: "Total number of cache snapshot operations",
		},
		[]string{"operation", "result"}, // "save"/"load", "ok"/"missing"/"error"
	)
)
