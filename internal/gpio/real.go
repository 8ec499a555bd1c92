//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "diag-logger"

// Chip hands out lines from a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Close releases the chip. Lines requested from it must be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealInput reads a button line from actual hardware.
type RealInput struct {
	line *gpiocdev.Line
	pin  int
}

// Input requests pin as an input with pull-up. With activeLow set the line
// reads logical true while it is pulled to ground, which is how a button to
// ground is wired.
func (c *Chip) Input(pin int, activeLow bool) (*RealInput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &RealInput{line: line, pin: pin}, nil
}

// Value returns the logical level of the line.
func (r *RealInput) Value() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return v == 1, nil
}

// Close releases the line.
func (r *RealInput) Close() error {
	if err := r.line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", r.pin, err)
	}
	return nil
}

// RealOutput drives an output line on actual hardware.
type RealOutput struct {
	line      *gpiocdev.Line
	pin       int
	activeLow bool
}

// Output requests pin as an output driven to the logical level initial.
func (c *Chip) Output(pin int, activeLow, initial bool) (*RealOutput, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(level(initial))}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin, activeLow: activeLow}, nil
}

// Set drives the line to the logical level.
func (o *RealOutput) Set(on bool) error {
	if err := o.line.SetValue(level(on)); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	return nil
}

// Close drives the line inactive and returns it to an input with pull-down
// (matching Pi boot defaults) before releasing it.
func (o *RealOutput) Close() error {
	var errs []error

	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("deassert pin %d: %w", o.pin, err))
	}
	// An active-low line left as a pulled-down input would assert it.
	if !o.activeLow {
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.pin, err))
		}
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
