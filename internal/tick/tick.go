// Package tick provides the millisecond tick counters that drive every delay,
// debounce and timeout in the logger.
//
// Counters are mutated only by Tick, which stands in for the periodic timer
// interrupt. Consumers arm and read them, and block on Wait or Next instead
// of spinning.
package tick

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Frequency is the number of ticks per second.
const Frequency = 1000

// Period is the duration of one tick.
const Period = time.Second / Frequency

// ID names one of the countdown timers.
type ID int

const (
	// Timer1 is a general-purpose countdown (indicator timing).
	Timer1 ID = iota
	// Timer2 is a general-purpose countdown (settle and recovery delays).
	Timer2
	// TimerProtocol is reserved for the protocol engine.
	TimerProtocol

	numTimers
)

// Counters is the shared tick state. The zero value is not usable; call New.
type Counters struct {
	timers    [numTimers]atomic.Uint32
	subSecond atomic.Uint32
	seconds   atomic.Uint32
	ticks     atomic.Uint64

	mu     sync.Mutex
	notify chan struct{}
}

// New creates counters with every countdown at zero.
func New() *Counters {
	return &Counters{notify: make(chan struct{})}
}

// Tick advances all counters by one tick. Countdowns saturate at zero.
// Tick never blocks and performs no I/O.
func (c *Counters) Tick() {
	for i := range c.timers {
		decrement(&c.timers[i])
	}

	if c.subSecond.Add(1) >= Frequency {
		c.subSecond.Store(0)
		c.seconds.Add(1)
	}
	c.ticks.Add(1)

	c.mu.Lock()
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()
}

func decrement(v *atomic.Uint32) {
	for {
		old := v.Load()
		if old == 0 {
			return
		}
		if v.CompareAndSwap(old, old-1) {
			return
		}
	}
}

// Arm sets countdown id to ms ticks.
func (c *Counters) Arm(id ID, ms uint32) {
	c.timers[id].Store(ms)
}

// Remaining returns the ticks left on countdown id.
func (c *Counters) Remaining(id ID) uint32 {
	return c.timers[id].Load()
}

// Ticks returns the free-running tick count.
func (c *Counters) Ticks() uint64 {
	return c.ticks.Load()
}

// ResetElapsed zeroes the elapsed seconds and sub-second counters.
func (c *Counters) ResetElapsed() {
	c.subSecond.Store(0)
	c.seconds.Store(0)
}

// Elapsed returns the elapsed seconds and sub-second ticks since the last
// ResetElapsed.
func (c *Counters) Elapsed() (seconds, sub uint32) {
	return c.seconds.Load(), c.subSecond.Load()
}

// changed returns a channel closed on the next tick.
func (c *Counters) changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify
}

// Wait blocks until countdown id reaches zero or ctx is done.
func (c *Counters) Wait(ctx context.Context, id ID) error {
	for {
		ch := c.changed()
		if c.Remaining(id) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Delay arms countdown id with ms ticks and waits for it to expire.
func (c *Counters) Delay(ctx context.Context, id ID, ms uint32) error {
	c.Arm(id, ms)
	return c.Wait(ctx, id)
}

// Next blocks until the next tick and returns the tick count after it.
func (c *Counters) Next(ctx context.Context) (uint64, error) {
	ch := c.changed()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-ch:
		return c.Ticks(), nil
	}
}
