package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weiawesome/wes-match-live/pkg/clock"
)

func newTestDebouncer() (*Debouncer, *clock.Fake, *int32) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var calls int32
	d := New(clk, DefaultWindow, func() { atomic.AddInt32(&calls, 1) })
	return d, clk, &calls
}

func TestBurstCoalescesIntoOneCall(t *testing.T) {
	d, clk, calls := newTestDebouncer()

	for i := 0; i < 10; i++ {
		d.Schedule()
		clk.Advance(100 * time.Millisecond)
	}
	assert.Zero(t, atomic.LoadInt32(calls), "each schedule restarts the window")
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(400 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.False(t, d.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSeparateBurstsFireSeparately(t *testing.T) {
	d, clk, calls := newTestDebouncer()

	d.Schedule()
	clk.Advance(DefaultWindow)
	d.Schedule()
	clk.Advance(DefaultWindow)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestStopCancelsPending(t *testing.T) {
	d, clk, calls := newTestDebouncer()

	d.Schedule()
	d.Stop()
	clk.Advance(time.Second)
	assert.Zero(t, atomic.LoadInt32(calls))

	d.Schedule()
	clk.Advance(time.Second)
	assert.Zero(t, atomic.LoadInt32(calls), "schedule after stop is ignored")
}

func TestStaleTimerDoesNotFire(t *testing.T) {
	d, _, calls := newTestDebouncer()

	d.Schedule()
	d.mu.Lock()
	stale := d.gen
	d.mu.Unlock()
	d.Schedule()

	d.fire(stale)
	assert.Zero(t, atomic.LoadInt32(calls))
}
