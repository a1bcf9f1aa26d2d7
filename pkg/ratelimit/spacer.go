package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Spacer enforces a minimum gap between consecutive dispatches, globally.
// The read-modify-write of the last dispatch time happens while holding a
// one-slot semaphore so that waiting for it can still observe ctx.
type Spacer struct {
	min time.Duration
	now func() time.Time
	sem chan struct{}

	mu   sync.Mutex
	last time.Time
}

// NewSpacer creates a spacer with the given minimum interval.
func NewSpacer(min time.Duration) *Spacer {
	return &Spacer{
		min: min,
		now: time.Now,
		sem: make(chan struct{}, 1),
	}
}

// Wait sleeps until at least min has passed since the previous Wait returned,
// then stamps the current time as the last dispatch.
func (s *Spacer) Wait(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	if last := s.Last(); !last.IsZero() {
		if elapsed := s.now().Sub(last); elapsed < s.min {
			if err := sleep(ctx, s.min-elapsed); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.last = s.now()
	s.mu.Unlock()
	return nil
}

// Last returns the time of the most recent dispatch.
func (s *Spacer) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Min returns the configured minimum spacing.
func (s *Spacer) Min() time.Duration {
	return s.min
}
