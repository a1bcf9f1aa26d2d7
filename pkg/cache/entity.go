package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EntityConfig configures one EntityCache.
type EntityConfig[T any] struct {
	// Name labels metrics and log lines
	Name string

	// DefaultTTL applies to every Set without an explicit TTL
	DefaultTTL time.Duration

	// MaxEntries bounds the number of stored entries
	MaxEntries int

	// Merge, when set, combines the prior live value with a new one on Set
	Merge MergeFunc[T]
}

// EntityCache is a TTL-bounded, LRU-bounded cache for one entity type.
// It is safe for concurrent use.
type EntityCache[T any] struct {
	name       string
	defaultTTL time.Duration
	maxEntries int
	merge      MergeFunc[T]
	now        func() time.Time

	mu  sync.Mutex
	lru *simplelru.LRU[string, Entry[T]]
}

// NewEntityCache creates an empty cache. A non-positive MaxEntries is
// treated as 1 and a non-positive DefaultTTL as one minute.
func NewEntityCache[T any](cfg EntityConfig[T]) *EntityCache[T] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Minute
	}

	// NewLRU only fails for a non-positive size.
	l, _ := simplelru.NewLRU[string, Entry[T]](cfg.MaxEntries, nil)

	return &EntityCache[T]{
		name:       cfg.Name,
		defaultTTL: cfg.DefaultTTL,
		maxEntries: cfg.MaxEntries,
		merge:      cfg.Merge,
		now:        time.Now,
		lru:        l,
	}
}

// Get returns the live value for key and marks it most recently used.
// An expired entry is removed and reported absent.
func (c *EntityCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.lru.Peek(key)
	if !ok {
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}
	if entry.IsExpired(c.now()) {
		c.lru.Remove(key)
		CacheExpirations.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues(c.name).Inc()
		c.updateGaugeLocked()
		return zero, false
	}

	c.lru.Get(key)
	CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true
}

// Set stores value with the default TTL and returns what was stored.
func (c *EntityCache[T]) Set(key string, value T) T {
	return c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value for ttl, or the default TTL when ttl <= 0. With a
// merge function and a live prior value, the stored value is
// merge(prior, value). The returned value is the one stored.
func (c *EntityCache[T]) SetWithTTL(key string, value T, ttl time.Duration) T {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.merge != nil {
		if prior, ok := c.lru.Peek(key); ok && !prior.IsExpired(now) {
			value = c.merge(prior.Value, value)
		}
	}

	// Make room from expired entries before evicting a live one.
	if !c.lru.Contains(key) && c.lru.Len() >= c.maxEntries {
		c.cleanupLocked(now)
	}

	if evicted := c.lru.Add(key, newEntry(value, now, ttl)); evicted {
		CacheEvictions.WithLabelValues(c.name).Inc()
	}
	c.updateGaugeLocked()
	return value
}

// Has reports whether a live entry exists for key. Like Get, a hit counts as
// an access and moves the entry to the front of the LRU order.
func (c *EntityCache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	if entry.IsExpired(c.now()) {
		c.lru.Remove(key)
		CacheExpirations.WithLabelValues(c.name).Inc()
		c.updateGaugeLocked()
		return false
	}
	return true
}

// Invalidate removes key and reports whether it was present.
func (c *EntityCache[T]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.lru.Remove(key)
	c.updateGaugeLocked()
	return removed
}

// InvalidatePrefix removes every key starting with prefix and returns how
// many were removed.
func (c *EntityCache[T]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	c.updateGaugeLocked()
	return removed
}

// Clear removes every entry.
func (c *EntityCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.updateGaugeLocked()
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *EntityCache[T]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.cleanupLocked(c.now())
	c.updateGaugeLocked()
	return removed
}

// Values returns the live values, least recently used first.
func (c *EntityCache[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(c.now())
	c.updateGaugeLocked()

	values := make([]T, 0, c.lru.Len())
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok {
			values = append(values, entry.Value)
		}
	}
	return values
}

// Items returns the live entries keyed by cache key.
func (c *EntityCache[T]) Items() map[string]T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(c.now())
	c.updateGaugeLocked()

	items := make(map[string]T, c.lru.Len())
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok {
			items[key] = entry.Value
		}
	}
	return items
}

// Keys returns the live keys, least recently used first.
func (c *EntityCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(c.now())
	c.updateGaugeLocked()
	return c.lru.Keys()
}

// Len returns the number of live entries.
func (c *EntityCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(c.now())
	c.updateGaugeLocked()
	return c.lru.Len()
}

// Name returns the cache name.
func (c *EntityCache[T]) Name() string { return c.name }

// DefaultTTL returns the TTL used when Set is called without one.
func (c *EntityCache[T]) DefaultTTL() time.Duration { return c.defaultTTL }

// MaxEntries returns the size bound.
func (c *EntityCache[T]) MaxEntries() int { return c.maxEntries }

func (c *EntityCache[T]) cleanupLocked(now time.Time) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if ok && entry.IsExpired(now) {
			c.lru.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		CacheExpirations.WithLabelValues(c.name).Add(float64(removed))
	}
	return removed
}

func (c *EntityCache[T]) updateGaugeLocked() {
	CacheEntries.WithLabelValues(c.name).Set(float64(c.lru.Len()))
}
