package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate is the process-wide block gate. While blocked, every dispatch waits.
// Closing is a check-and-set so exactly one caller owns each blocking episode.
type Gate struct {
	mu           sync.Mutex
	open         bool
	reopened     chan struct{}
	blockedUntil time.Time
}

// NewGate returns an open gate.
func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{open: true, reopened: ch}
}

// TryClose blocks the gate if it is open. It reports whether this call
// performed the transition; a false return means another caller already owns
// the current episode.
func (g *Gate) TryClose() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return false
	}
	g.open = false
	g.reopened = make(chan struct{})
	return true
}

// Open reopens the gate and releases all waiters. Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return
	}
	g.open = true
	g.blockedUntil = time.Time{}
	close(g.reopened)
}

// BlockFor closes the gate and schedules it to reopen after d. It reports
// whether this call opened the episode. The reopen timer runs independently
// of the caller so an abandoned caller cannot leave the gate shut.
func (g *Gate) BlockFor(d time.Duration) bool {
	if !g.TryClose() {
		return false
	}
	g.mu.Lock()
	g.blockedUntil = time.Now().Add(d)
	g.mu.Unlock()

	gateBlocksTotal.Inc()
	time.AfterFunc(d, g.Open)
	return true
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return nil
	}
	ch := g.reopened
	g.mu.Unlock()

	start := time.Now()
	defer func() {
		gateWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsOpen reports whether dispatches may proceed.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// BlockedUntil returns the scheduled reopen time, or zero when open.
func (g *Gate) BlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil
}
