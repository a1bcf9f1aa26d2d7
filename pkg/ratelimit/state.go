// Package ratelimit holds the shared throttling state every dispatch passes
// through: a rolling-window limiter, the global block gate that halts all
// traffic during a 429 cooldown, and a minimum-spacing guard.
package ratelimit

import (
	"time"
)

// Defaults for the upstream API's published limits.
const (
	// DefaultLimit is the number of dispatches allowed per DefaultInterval.
	DefaultLimit = 60

	// DefaultInterval is the rolling window length.
	DefaultInterval = time.Minute

	// DefaultMinSpacing is the minimum gap between two dispatches.
	DefaultMinSpacing = 100 * time.Millisecond

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter = 10 * time.Second

	// DefaultRetryAfterPadding is added to every Retry-After before reopening the gate.
	DefaultRetryAfterPadding = time.Second

	// MaxRetryAfter caps the cooldown taken from a Retry-After header.
	MaxRetryAfter = time.Hour
)

// State is a point-in-time snapshot of the tracker.
type State struct {
	// WindowCount is the number of dispatches inside the rolling window.
	WindowCount int `json:"window_count"`

	// WindowLimit is the configured maximum for the rolling window.
	WindowLimit int `json:"window_limit"`

	// GateOpen is false while a 429 cooldown is in progress.
	GateOpen bool `json:"gate_open"`

	// BlockedUntil is when the gate is scheduled to reopen. Zero when open.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastDispatch is when the most recent dispatch passed the spacing guard.
	LastDispatch time.Time `json:"last_dispatch"`
}

// NeedsThrottling returns true if the next dispatch will wait on the window.
func (s *State) NeedsThrottling() bool {
	return s.WindowCount >= s.WindowLimit
}

// Headroom returns how many dispatches the window admits right now.
func (s *State) Headroom() int {
	if h := s.WindowLimit - s.WindowCount; h > 0 {
		return h
	}
	return 0
}

// TimeUntilUnblocked returns the remaining cooldown, or 0 when the gate is open.
func (s *State) TimeUntilUnblocked() time.Duration {
	if s.GateOpen {
		return 0
	}
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}
