//go:build !linux

package reset

import "errors"

// Reboot is only supported on Linux.
type Reboot struct{}

// Reset always fails on this platform.
func (Reboot) Reset() error {
	return errors.New("reboot not supported on this platform")
}
