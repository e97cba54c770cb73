package runner

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mingkeli/devagent/pkg/platform"
)

// SpawnProcessGroup launches a command detached into its own process group
// with stdout and stderr redirected to logPath. The whole subtree can later
// be terminated through the returned pid.
func (r *Runner) SpawnProcessGroup(command, cwd, logPath string) (int, error) {
	if err := r.CheckCommand(command); err != nil {
		return 0, err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open process log %s: %w", logPath, err)
	}
	defer logFile.Close()

	shell, args := platform.ShellCommand(command)
	cmd := exec.Command(shell, args...)
	cmd.Dir = platform.Workdir(cwd)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to spawn process group: %w", err)
	}
	pid := cmd.Process.Pid

	// Reap the child in the background so it never zombies while we poll
	// its log file instead of its pipes.
	go func() { _ = cmd.Wait() }()

	if r.logger != nil {
		r.logger.LogEvent("process_spawn", map[string]interface{}{
			"cmd": command, "pid": pid, "log": logPath, "cwd": cmd.Dir,
		})
	}
	return pid, nil
}

// KillProcessGroup terminates a previously spawned group: TERM first, then
// KILL if anything is still alive after the grace period.
func KillProcessGroup(pid int, grace time.Duration) error {
	if err := terminateGroup(pid); err != nil {
		return err
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsProcessAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return killGroup(pid)
}

// PIDsListeningOn enumerates the pids with a listener on the given TCP port
// using the platform helper (lsof on unix, netstat on windows).
func PIDsListeningOn(port int) ([]int, error) {
	out, err := listPortPIDs(port)
	if err != nil {
		return nil, err
	}
	var pids []int
	seen := make(map[int]bool)
	for _, line := range strings.Fields(out) {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && !seen[pid] {
			seen[pid] = true
			pids = append(pids, pid)
		}
	}
	return pids, nil
}
