// Package operator handles the physical operator interface: the button
// mailbox and sampler, and the status LED and buzzer.
package operator

import (
	"sync/atomic"

	"github.com/sweeney/diag-logger/internal/logic"
)

// Mailbox is a single-slot holder for the latest button event.
// A new event overwrites an unconsumed one; presses are coalesced, not queued.
type Mailbox struct {
	v atomic.Int32
}

// Post stores ev, replacing anything not yet taken.
func (m *Mailbox) Post(ev logic.ButtonState) {
	m.v.Store(int32(ev))
}

// Peek returns the held event without consuming it.
func (m *Mailbox) Peek() logic.ButtonState {
	return logic.ButtonState(m.v.Load())
}

// Take returns the held event and resets the mailbox to idle.
func (m *Mailbox) Take() logic.ButtonState {
	return logic.ButtonState(m.v.Swap(int32(logic.ButtonIdle)))
}

// TakeIf consumes the held event only when it equals ev.
func (m *Mailbox) TakeIf(ev logic.ButtonState) bool {
	return m.v.CompareAndSwap(int32(ev), int32(logic.ButtonIdle))
}

// Clear discards any held event.
func (m *Mailbox) Clear() {
	m.v.Store(int32(logic.ButtonIdle))
}
