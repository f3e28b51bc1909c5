package debounce

import (
	"sync"
	"time"

	"github.com/weiawesome/wes-match-live/pkg/clock"
)

// DefaultWindow is the quiet period before a coalesced call fires.
const DefaultWindow = 500 * time.Millisecond

// Debouncer coalesces bursts of Schedule calls into one call of fn after
// window of inactivity. It owns a single pending timer; every Schedule
// replaces it.
type Debouncer struct {
	mu      sync.Mutex
	clock   clock.Clock
	window  time.Duration
	fn      func()
	pending clock.Timer
	gen     uint64
	stopped bool
}

// New creates a debouncer. fn runs on the clock's timer goroutine without
// any debouncer lock held.
func New(clk clock.Clock, window time.Duration, fn func()) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{clock: clk, window: window, fn: fn}
}

// Schedule cancels any pending call and starts a fresh window.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A Stop that lost the race with an already-running timer leaves a
	// stale generation behind.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a call is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop cancels the pending call. Later Schedule calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
