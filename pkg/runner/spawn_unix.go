//go:build !windows

package runner

import (
	"fmt"
	"os/exec"
	"syscall"
)

// setProcessGroup makes the child the leader of a new process group so the
// whole tree can be signalled as one.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// IsProcessAlive checks process existence with signal 0.
func IsProcessAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func terminateGroup(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to TERM process group %d: %w", pid, err)
	}
	return nil
}

func killGroup(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to KILL process group %d: %w", pid, err)
	}
	return nil
}

func listPortPIDs(port int) (string, error) {
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		// lsof exits non-zero when nothing listens; that is not an error.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("lsof failed: %w", err)
	}
	return string(out), nil
}
