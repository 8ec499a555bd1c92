//go:build linux

package reset

import (
	"fmt"
	"log"

	"golang.org/x/sys/unix"
)

// Reboot flushes filesystems and restarts the machine. It needs
// CAP_SYS_BOOT.
type Reboot struct{}

// Reset syncs and reboots. On success it does not return.
func (Reboot) Reset() error {
	log.Printf("reset: rebooting")
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
