package client

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// pendingCall marks a GET in flight for one dedup key.
type pendingCall struct {
	started time.Time
}

// pendingTable merges concurrent identical GETs into one upstream call.
// singleflight does the sharing; the table adds the age limit, after which
// new callers start a fresh call and the stale one is left to finish for
// the callers already attached to it.
type pendingTable struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable(ttl time.Duration) *pendingTable {
	return &pendingTable{
		ttl:   ttl,
		now:   time.Now,
		calls: make(map[string]*pendingCall),
	}
}

// do attaches to the live call for key or registers and starts a new one.
// It reports whether the caller joined an existing call.
func (p *pendingTable) do(key string, fn func() (*Response, error)) (<-chan singleflight.Result, bool) {
	p.mu.Lock()
	call, ok := p.calls[key]
	joined := ok && p.now().Sub(call.started) < p.ttl
	if ok && !joined {
		p.group.Forget(key)
		delete(p.calls, key)
		dedupStaleTotal.Inc()
	}
	if !joined {
		call = &pendingCall{started: p.now()}
		p.calls[key] = call
	}
	p.mu.Unlock()

	ch := p.group.DoChan(key, func() (any, error) {
		defer p.release(key, call)
		return fn()
	})
	return ch, joined
}

// release removes the entry unless a newer call has replaced it.
func (p *pendingTable) release(key string, call *pendingCall) {
	p.mu.Lock()
	if p.calls[key] == call {
		delete(p.calls, key)
	}
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
