//go:build windows

package platform

import "os"

// PIDAlive probes an arbitrary PID. Windows has no null-signal probe,
// so this opens and immediately releases a handle to the process;
// FindProcess itself fails once the PID has exited.
func PIDAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
