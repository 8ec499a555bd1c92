package operator

import (
	"context"
	"log"

	"github.com/sweeney/diag-logger/internal/gpio"
	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/tick"
)

// DefaultSampleTicks is the button sampling interval in ticks.
const DefaultSampleTicks = 10

// Button samples a GPIO input on the tick clock and posts debounced presses
// to a mailbox.
type Button struct {
	in       gpio.Input
	counters *tick.Counters
	deb      *logic.Debouncer
	box      *Mailbox
	every    uint64
}

// NewButton creates a sampler with the default debounce timings.
func NewButton(in gpio.Input, counters *tick.Counters, box *Mailbox) *Button {
	return &Button{
		in:       in,
		counters: counters,
		deb:      logic.NewDebouncer(logic.DefaultDebounceTicks, logic.DefaultLongPressTicks),
		box:      box,
		every:    DefaultSampleTicks,
	}
}

// Run samples the input until ctx is done.
// Read errors are logged and the sample skipped.
func (b *Button) Run(ctx context.Context) error {
	var last uint64
	readFailing := false
	for {
		now, err := b.counters.Next(ctx)
		if err != nil {
			return err
		}
		if now-last < b.every {
			continue
		}
		last = now

		if err := b.sample(now); err != nil {
			if !readFailing {
				log.Printf("button: read error: %v", err)
				readFailing = true
			}
			continue
		}
		readFailing = false
	}
}

// sample reads the input once at tick now and posts any resulting press.
func (b *Button) sample(now uint64) error {
	pressed, err := b.in.Value()
	if err != nil {
		return err
	}
	if ev := b.deb.Process(pressed, now); ev != logic.ButtonIdle {
		log.Printf("button: %s", ev)
		b.box.Post(ev)
	}
	return nil
}
