package client

import (
	"testing"
	"time"
)

func TestBreaker(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(15 * time.Minute)
	b.now = clock.Now

	if b.suppressed("/users/usr_1") {
		t.Fatal("unknown endpoint suppressed")
	}

	b.record("/users/usr_1")
	if !b.suppressed("/users/usr_1") {
		t.Error("recorded endpoint not suppressed")
	}
	if b.suppressed("/users/usr_2") {
		t.Error("other endpoint suppressed")
	}

	clock.Advance(15*time.Minute - time.Second)
	if !b.suppressed("/users/usr_1") {
		t.Error("endpoint released before TTL")
	}

	clock.Advance(time.Second)
	if b.suppressed("/users/usr_1") {
		t.Error("endpoint still suppressed at TTL")
	}
	if got := b.len(); got != 0 {
		t.Errorf("len() = %d, want expired record removed on read", got)
	}
}

func TestBreaker_ForgetAndReset(t *testing.T) {
	b := newBreaker(time.Minute)
	b.record("/a")
	b.record("/b")

	b.forget("/a")
	if b.suppressed("/a") {
		t.Error("/a suppressed after forget")
	}
	if !b.suppressed("/b") {
		t.Error("/b released by forget(/a)")
	}

	b.reset()
	if got := b.len(); got != 0 {
		t.Errorf("len() = %d after reset, want 0", got)
	}
}
