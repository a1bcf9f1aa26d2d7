package ratelimit

import (
	"testing"
	"time"
)

func TestState_NeedsThrottling(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		limit    int
		expected bool
	}{
		{
			name:     "empty window",
			count:    0,
			limit:    60,
			expected: false,
		},
		{
			name:     "one below limit",
			count:    59,
			limit:    60,
			expected: false,
		},
		{
			name:     "at limit",
			count:    60,
			limit:    60,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{WindowCount: tt.count, WindowLimit: tt.limit}
			if got := state.NeedsThrottling(); got != tt.expected {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Headroom(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		limit    int
		expected int
	}{
		{"empty", 0, 60, 60},
		{"partial", 45, 60, 15},
		{"full", 60, 60, 0},
		{"over", 61, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{WindowCount: tt.count, WindowLimit: tt.limit}
			if got := state.Headroom(); got != tt.expected {
				t.Errorf("Headroom() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestState_TimeUntilUnblocked(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "gate open",
			state:   State{GateOpen: true, BlockedUntil: time.Now().Add(time.Minute)},
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "blocked for 10s",
			state:   State{GateOpen: false, BlockedUntil: time.Now().Add(10 * time.Second)},
			wantMin: 9 * time.Second,
			wantMax: 10 * time.Second,
		},
		{
			name:    "reopen time already passed",
			state:   State{GateOpen: false, BlockedUntil: time.Now().Add(-time.Second)},
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.TimeUntilUnblocked()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TimeUntilUnblocked() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
