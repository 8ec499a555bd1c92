// Package reset performs the hard reset that ends a fatal halt.
package reset

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrReset is returned by the control loop after a reset was issued.
var ErrReset = errors.New("device reset")

// Resetter resets the device.
type Resetter interface {
	Reset() error
}

// Exit is a Resetter that leaves the restart to the process supervisor.
// The daemon returns ErrReset and exits with ExitCode.
type Exit struct{}

// ExitCode is the process status after a reset requested through Exit.
const ExitCode = 3

// Reset logs the request.
func (Exit) Reset() error {
	log.Printf("reset: exiting for supervisor restart")
	return nil
}

// Fake records resets.
type Fake struct {
	mu    sync.Mutex
	count int

	// Err, if set, is returned by Reset.
	Err error
}

// Reset records the call.
func (f *Fake) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.Err
}

// Count returns how many resets were requested.
func (f *Fake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// New returns the resetter for mode: "reboot" or "exit".
func New(mode string) (Resetter, error) {
	switch mode {
	case "reboot":
		return Reboot{}, nil
	case "exit", "":
		return Exit{}, nil
	default:
		return nil, fmt.Errorf("unknown reset mode %q", mode)
	}
}
