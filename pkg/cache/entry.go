package cache

import (
	"time"
)

// Entry is one cached value together with its lifetime.
type Entry[T any] struct {
	// Value is the stored (possibly merged) value
	Value T `json:"value"`

	// CreatedAt is when the value was last written
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is CreatedAt plus the TTL the entry was written with
	ExpiresAt time.Time `json:"expires_at"`
}

func newEntry[T any](value T, now time.Time, ttl time.Duration) Entry[T] {
	return Entry[T]{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true once now has reached ExpiresAt.
func (e *Entry[T]) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[T]) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was written.
func (e *Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
