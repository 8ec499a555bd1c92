package operator

import (
	"context"
	"log"
	"sync"

	"github.com/sweeney/diag-logger/internal/gpio"
	"github.com/sweeney/diag-logger/internal/tick"
)

// Indicator is an on/off actuator (LED or buzzer). It holds no pattern state.
type Indicator struct {
	mu  sync.Mutex
	out gpio.Output
	on  bool
}

// NewIndicator wraps an output line.
func NewIndicator(out gpio.Output) *Indicator {
	return &Indicator{out: out}
}

// Set drives the indicator solid on or off.
func (i *Indicator) Set(on bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.out.Set(on); err != nil {
		return err
	}
	i.on = on
	return nil
}

// On reports the last level successfully set.
func (i *Indicator) On() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.on
}

// Panel groups the status LED and buzzer.
// Indicator failures are logged, never returned: feedback is best effort.
type Panel struct {
	LED    *Indicator
	Buzzer *Indicator
}

// NewPanel creates a panel from the LED and buzzer outputs.
func NewPanel(led, buzzer gpio.Output) *Panel {
	return &Panel{LED: NewIndicator(led), Buzzer: NewIndicator(buzzer)}
}

// Idle turns everything off.
func (p *Panel) Idle() {
	p.set(p.LED, "led", false)
	p.set(p.Buzzer, "buzzer", false)
}

// Busy lights the LED while a session is running.
func (p *Panel) Busy() {
	p.set(p.LED, "led", true)
	p.set(p.Buzzer, "buzzer", false)
}

// Error lights the LED solid and sounds the buzzer for ms ticks, timed on
// countdown Timer1. The LED stays on afterwards.
func (p *Panel) Error(ctx context.Context, counters *tick.Counters, ms uint32) error {
	p.set(p.LED, "led", true)
	p.set(p.Buzzer, "buzzer", true)
	err := counters.Delay(ctx, tick.Timer1, ms)
	p.set(p.Buzzer, "buzzer", false)
	return err
}

func (p *Panel) set(i *Indicator, name string, on bool) {
	if err := i.Set(on); err != nil {
		log.Printf("panel: %s: %v", name, err)
	}
}
