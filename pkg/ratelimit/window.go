package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a rolling-window limiter: at most limit admissions in any
// trailing interval. Admission timestamps are kept in order, oldest first.
type Window struct {
	limit    int
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	stamps []time.Time
}

// NewWindow creates a rolling window admitting limit events per interval.
func NewWindow(limit int, interval time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Window{
		limit:    limit,
		interval: interval,
		now:      time.Now,
		stamps:   make([]time.Time, 0, limit),
	}
}

// Wait blocks until the window has room, then records an admission.
// It returns ctx.Err() if the context ends while waiting.
func (w *Window) Wait(ctx context.Context) error {
	_, err := w.reserve(ctx)
	return err
}

// reserve is Wait that also returns the recorded admission time so the
// slot can be handed back with release.
func (w *Window) reserve(ctx context.Context) (time.Time, error) {
	for {
		w.mu.Lock()
		now := w.now()
		w.pruneLocked(now)
		if len(w.stamps) < w.limit {
			w.stamps = append(w.stamps, now)
			occupancy.Set(float64(len(w.stamps)))
			w.mu.Unlock()
			return now, nil
		}
		wait := w.stamps[0].Add(w.interval).Sub(now)
		w.mu.Unlock()

		windowWaitsTotal.Inc()
		if err := sleep(ctx, wait); err != nil {
			return time.Time{}, err
		}
	}
}

// release removes one admission recorded at. Releasing an admission that
// already aged out is a no-op.
func (w *Window) release(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.stamps) - 1; i >= 0; i-- {
		if w.stamps[i].Equal(at) {
			w.stamps = append(w.stamps[:i], w.stamps[i+1:]...)
			occupancy.Set(float64(len(w.stamps)))
			return
		}
	}
}

// Count returns the number of admissions inside the current window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return len(w.stamps)
}

// Limit returns the configured admissions per interval.
func (w *Window) Limit() int {
	return w.limit
}

// Interval returns the window length.
func (w *Window) Interval() time.Duration {
	return w.interval
}

func (w *Window) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(w.stamps) && now.Sub(w.stamps[cut]) >= w.interval {
		cut++
	}
	if cut > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[cut:]...)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
