package mqtt

import (
	"context"
	"log"

	"github.com/sweeney/diag-logger/internal/logic"
)

// DefaultQueueSize is the Forwarder's event queue depth.
const DefaultQueueSize = 32

// Forwarder is a logic.Observer that hands events to a Publisher on its own
// goroutine, so a slow broker never stalls the control loop. Events that do
// not fit in the queue are dropped.
type Forwarder struct {
	pub    Publisher
	events chan logic.Event
}

// NewForwarder creates a Forwarder with a queue of the given size.
func NewForwarder(pub Publisher, size int) *Forwarder {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Forwarder{pub: pub, events: make(chan logic.Event, size)}
}

// Observe queues ev for publishing. It never blocks.
func (f *Forwarder) Observe(ev logic.Event) {
	if !ShouldPublish(ev) {
		return
	}
	select {
	case f.events <- ev:
	default:
		log.Printf("mqtt: queue full, dropping %s event", ev.Type)
	}
}

// Run publishes queued events until ctx is done, then flushes what is left.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.flush()
			return ctx.Err()
		case ev := <-f.events:
			f.publish(ev)
		}
	}
}

func (f *Forwarder) flush() {
	for {
		select {
		case ev := <-f.events:
			f.publish(ev)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ev logic.Event) {
	if err := f.pub.Publish(ev); err != nil {
		log.Printf("mqtt: publish %s: %v", ev.Type, err)
	}
}
