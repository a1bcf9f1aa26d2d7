package client

import (
	"sync"
	"time"
)

// breaker remembers endpoints that answered a GET with 403 or 404.
// Records expire when read; there is no sweep.
type breaker struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	failed map[string]time.Time
}

func newBreaker(ttl time.Duration) *breaker {
	return &breaker{
		ttl:    ttl,
		now:    time.Now,
		failed: make(map[string]time.Time),
	}
}

// suppressed reports whether endpoint failed within ttl.
func (b *breaker) suppressed(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	at, ok := b.failed[endpoint]
	if !ok {
		return false
	}
	if b.now().Sub(at) < b.ttl {
		return true
	}
	delete(b.failed, endpoint)
	return false
}

func (b *breaker) record(endpoint string) {
	b.mu.Lock()
	b.failed[endpoint] = b.now()
	b.mu.Unlock()
}

func (b *breaker) forget(endpoint string) {
	b.mu.Lock()
	delete(b.failed, endpoint)
	b.mu.Unlock()
}

func (b *breaker) reset() {
	b.mu.Lock()
	b.failed = make(map[string]time.Time)
	b.mu.Unlock()
}

func (b *breaker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.failed)
}
