//go:build windows

package runner

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// IsProcessAlive checks whether the pid refers to a live process.
func IsProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Windows FindProcess succeeds only for live processes.
	proc.Release()
	return true
}

func terminateGroup(pid int) error {
	// taskkill /T covers the whole tree, the closest match to a unix
	// process-group TERM.
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T").Run()
}

func killGroup(pid int) error {
	return exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid), "/T").Run()
}

func listPortPIDs(port int) (string, error) {
	out, err := exec.Command("netstat", "-ano").Output()
	if err != nil {
		return "", fmt.Errorf("netstat failed: %w", err)
	}
	needle := fmt.Sprintf(":%d", port)
	var pids []string
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "LISTENING") || !strings.Contains(line, needle) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			pids = append(pids, fields[len(fields)-1])
		}
	}
	return strings.Join(pids, "\n"), nil
}
