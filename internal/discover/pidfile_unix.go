//go:build unix

package discover

import (
	"syscall"
)

// processExists checks if a process with the given PID exists by sending
// signal 0, which performs the existence check without delivering anything.
func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil
}
