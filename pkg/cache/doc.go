// Package cache keeps frequently requested API entities warm in memory.
//
// Each entity type lives in its own EntityCache with a default TTL, an
// entry bound enforced by least-recently-used eviction, and an optional
// merge function applied on write:
//
//   - Get never returns an entry whose TTL has elapsed; such entries are
//     removed when read.
//   - With a merge function, Set stores merge(prior, new) whenever a live
//     prior value exists. MergeSkipNull keeps known fields when the new
//     value carries null for them.
//   - After any Set the number of entries is at most MaxEntries.
//
// # Basic Usage
//
//	users := cache.NewEntityCache(cache.EntityConfig[cache.Record]{
//		Name:       "users",
//		DefaultTTL: 5 * time.Minute,
//		MaxEntries: 500,
//		Merge:      cache.MergeWithMembership,
//	})
//
//	users.Set("usr_1", cache.Record{"displayName": "Bob", "bio": nil})
//	users.Set("usr_1", cache.Record{"displayName": nil, "bio": "hi"})
//
//	user, ok := users.Get("usr_1") // {"displayName": "Bob", "bio": "hi"}
//
// # Manager
//
// Manager owns the seven caches used by the accessors (users, groups,
// instances, worlds, member pages, join requests and bans), sweeps them on
// an interval with RunCleanup, and persists the groups cache to a
// SnapshotStore (FileStore or RedisStore) for warm starts. Loaded groups get
// a fresh TTL; a missing snapshot loads nothing.
//
// # Metrics
//
//   - vrcapi_cache_hits_total{cache}
//   - vrcapi_cache_misses_total{cache}
//   - vrcapi_cache_evictions_total{cache}
//   - vrcapi_cache_expirations_total{cache}
//   - vrcapi_cache_entries{cache}
//   - vrcapi_cache_snapshot_operations_total{operation,result}
package cache
