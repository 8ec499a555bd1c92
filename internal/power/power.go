// Package power switches the storage card's supply rail.
//
// The card is only usable in state On. The settle delay between power off
// and power on is the caller's job; PowerOn refuses to run unless the caller
// has marked the settle period with BeginSettle.
package power

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/diag-logger/internal/gpio"
)

// State is the storage supply state.
type State int

const (
	Off State = iota
	SettlingOn
	On
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case SettlingOn:
		return "SETTLING_ON"
	case On:
		return "ON"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNotSettled = errors.New("power: storage not settling, call BeginSettle after PowerOff")
	ErrNotOff     = errors.New("power: storage supply is not off")
)

// Controller owns the supply rail and the card's data line.
type Controller struct {
	mu     sync.Mutex
	supply gpio.Output
	data   gpio.Output
	state  State
}

// New creates a controller. The supply output is logical (true = card
// powered); active-low wiring is handled by the line itself. The data line is
// the card's chip select, driven low while the card is unpowered so it cannot
// back-feed the card through its protection diodes.
func New(supply, data gpio.Output) *Controller {
	return &Controller{supply: supply, data: data}
}

// PowerOff de-asserts the data line and the supply. It is idempotent and
// always leaves the state Off, even when a line fails to switch.
func (c *Controller) PowerOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Off

	var errs []error
	if err := c.data.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("release data line: %w", err))
	}
	if err := c.supply.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("switch supply off: %w", err))
	}
	return errors.Join(errs...)
}

// BeginSettle marks the start of the settle period after PowerOff.
func (c *Controller) BeginSettle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Off {
		return ErrNotOff
	}
	c.state = SettlingOn
	return nil
}

// PowerOn raises the data line to idle and switches the supply on.
// It adds no delay of its own.
func (c *Controller) PowerOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SettlingOn {
		return ErrNotSettled
	}
	if err := c.data.Set(true); err != nil {
		return fmt.Errorf("drive data line: %w", err)
	}
	if err := c.supply.Set(true); err != nil {
		return fmt.Errorf("switch supply on: %w", err)
	}
	c.state = On
	return nil
}

// State returns the current supply state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the card may be accessed.
func (c *Controller) Ready() bool {
	return c.State() == On
}
