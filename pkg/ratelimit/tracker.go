package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	occupancy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vrcapi_rate_window_occupancy",
		Help: "Dispatches recorded in the current rolling window",
	})

	windowWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_rate_window_waits_total",
		Help: "Total number of times a dispatch slept because the rolling window was full",
	})

	gateBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrcapi_rate_gate_blocks_total",
		Help: "Total number of 429 episodes that closed the global gate",
	})

	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vrcapi_rate_gate_wait_seconds",
		Help:    "Time dispatches spent waiting for the global gate to reopen",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Config holds tracker configuration.
type Config struct {
	// Limit is the number of dispatches allowed per Interval.
	Limit int

	// Interval is the rolling window length.
	Interval time.Duration

	// MinSpacing is the minimum gap between two dispatches.
	MinSpacing time.Duration

	// DefaultRetryAfter applies when a 429 has no usable Retry-After.
	DefaultRetryAfter time.Duration

	// RetryAfterPadding is added on top of Retry-After.
	RetryAfterPadding time.Duration
}

// DefaultConfig returns the upstream API's limits.
func DefaultConfig() Config {
	return Config{
		Limit:             DefaultLimit,
		Interval:          DefaultInterval,
		MinSpacing:        DefaultMinSpacing,
		DefaultRetryAfter: DefaultRetryAfter,
		RetryAfterPadding: DefaultRetryAfterPadding,
	}
}

// Tracker gates dispatches through the block gate, the rolling window and
// the spacing guard, in that order.
type Tracker struct {
	config Config
	window *Window
	gate   *Gate
	spacer *Spacer
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = DefaultRetryAfter
	}
	if cfg.RetryAfterPadding < 0 {
		cfg.RetryAfterPadding = 0
	}
	return &Tracker{
		config: cfg,
		window: NewWindow(cfg.Limit, cfg.Interval),
		gate:   NewGate(),
		spacer: NewSpacer(cfg.MinSpacing),
		logger: logger,
	}
}

// Acquire blocks until a dispatch may proceed. Every successful call is
// recorded in the rolling window. The gate is checked again after the window
// and spacing waits; if it closed meanwhile the slot is handed back and the
// caller waits on the gate before trying again.
func (t *Tracker) Acquire(ctx context.Context) error {
	for {
		if err := t.gate.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		at, err := t.window.reserve(ctx)
		if err != nil {
			return err
		}
		if waited := time.Since(start); waited > time.Millisecond {
			t.logger.Debug().Dur("wait", waited).Msg("Rolling window full, waited for a slot")
		}

		if err := t.spacer.Wait(ctx); err != nil {
			t.window.release(at)
			return err
		}

		if t.gate.IsOpen() {
			return nil
		}
		t.window.release(at)
		t.logger.Debug().Msg("Gate closed while waiting for a slot, waiting for it to reopen")
	}
}

// HandleTooManyRequests reacts to a 429. The first caller to observe it while
// the gate is open closes the gate for Retry-After plus padding; every caller,
// the opener included, then waits for the gate to reopen. It reports whether
// this caller opened the episode.
func (t *Tracker) HandleTooManyRequests(ctx context.Context, header http.Header) (bool, error) {
	cooldown := ParseRetryAfter(header, t.config.DefaultRetryAfter) + t.config.RetryAfterPadding

	opened := t.gate.BlockFor(cooldown)
	if opened {
		t.logger.Warn().
			Dur("cooldown", cooldown).
			Msg("429 received - blocking all dispatches")
	}

	return opened, t.gate.Wait(ctx)
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	return State{
		WindowCount:  t.window.Count(),
		WindowLimit:  t.window.Limit(),
		GateOpen:     t.gate.IsOpen(),
		BlockedUntil: t.gate.BlockedUntil(),
		LastDispatch: t.spacer.Last(),
	}
}

// Gate exposes the global block gate.
func (t *Tracker) Gate() *Gate {
	return t.gate
}

// ParseRetryAfter reads Retry-After as delay-seconds or an HTTP-date.
// Missing, malformed or negative values yield fallback. Delays are capped
// at MaxRetryAfter.
func ParseRetryAfter(header http.Header, fallback time.Duration) time.Duration {
	if header == nil {
		return fallback
	}
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return fallback
		}
		if secs > MaxRetryAfter.Seconds() {
			return MaxRetryAfter
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return min(d, MaxRetryAfter)
		}
		return 0
	}
	return fallback
}
