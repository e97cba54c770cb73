package procman

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mingkeli/devagent/pkg/platform"
	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/utils"
)

const (
	// pollInterval is how often the daemon log is re-read during startup.
	pollInterval = 500 * time.Millisecond
	// defaultStartTimeout bounds daemon startup detection.
	defaultStartTimeout = 60 * time.Second
	// portGrace is how long we keep polling for a port after the success
	// pattern matched.
	portGrace = 2 * time.Second
	// killGrace is how long TERM gets before KILL.
	killGrace = 2 * time.Second
)

// Manager launches and tracks long-running development processes with a
// registry that survives orchestrator restarts.
type Manager struct {
	store  *store
	runner *runner.Runner
	logger *utils.Logger
}

// NewManager creates a process manager; Load must be called before use.
func NewManager(statePath, historyPath string, r *runner.Runner, logger *utils.Logger) *Manager {
	return &Manager{
		store:  newStore(statePath, historyPath, logger),
		runner: r,
		logger: logger,
	}
}

// Load restores the persistent registry, sweeping dead pids.
func (m *Manager) Load() error {
	return m.store.load()
}

// List returns the currently registered records.
func (m *Manager) List() []Record {
	return m.store.list()
}

// History returns the persisted lifecycle events.
func (m *Manager) History() []HistoryEvent {
	return m.store.history()
}

// StartResult is the outcome of a daemon launch.
type StartResult struct {
	Success   bool   `json:"success"`
	PID       int    `json:"pid,omitempty"`
	Port      string `json:"port,omitempty"`
	LogFile   string `json:"log_file,omitempty"`
	Framework string `json:"framework,omitempty"`
	Message   string `json:"message"`
}

// StartDaemon launches command as a detached process group and watches its
// log until a success pattern, an error pattern, child death, or the
// timeout decides the outcome. On success the child keeps running and a
// Record is registered.
func (m *Manager) StartDaemon(ctx context.Context, command, cwd string, timeout time.Duration) (*StartResult, error) {
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	cwd = platform.Workdir(cwd)
	logPath := platform.DaemonLogPath(cwd)

	// One log per project: overwrite prior content with a fresh header.
	header := fmt.Sprintf("=== devagent daemon log ===\ncommand: %s\nstarted: %s\n\n",
		command, time.Now().Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(logPath, []byte(header), 0644); err != nil {
		return nil, fmt.Errorf("failed to write daemon log header: %w", err)
	}

	pid, err := m.runner.SpawnProcessGroup(command, cwd, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}

	deadline := time.Now().Add(timeout)
	var successAt time.Time
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			_ = runner.KillProcessGroup(pid, killGrace)
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}

		raw, readErr := os.ReadFile(logPath)
		if readErr != nil {
			continue
		}
		log := platform.DecodeOutput(raw)

		if matchesAny(errorPatterns, log) {
			_ = runner.KillProcessGroup(pid, killGrace)
			return &StartResult{
				Success: false,
				LogFile: logPath,
				Message: fmt.Sprintf("❌ 启动失败，检测到错误:\n%s", logTail(log, 15)),
			}, nil
		}

		alive := runner.IsProcessAlive(pid)
		success := matchesAny(successPatterns, log)
		if !alive && !success {
			return &StartResult{
				Success: false,
				LogFile: logPath,
				Message: fmt.Sprintf("❌ 进程提前退出:\n%s", logTail(log, 15)),
			}, nil
		}

		if success {
			port := extractPort(log)
			// A server may print its ready banner before the URL line;
			// give the port a short grace window.
			if port == "" {
				if successAt.IsZero() {
					successAt = time.Now()
				}
				if time.Since(successAt) < portGrace {
					continue
				}
			}
			rec := Record{
				PID:       pid,
				Command:   command,
				Type:      "dev_server",
				Port:      port,
				LogFile:   logPath,
				StartedAt: time.Now(),
			}
			if err := m.store.add(rec); err != nil && m.logger != nil {
				m.logger.Warnf("failed to persist process record: %v", err)
			}
			framework := detectFramework(log)
			msg := fmt.Sprintf("✅ 服务启动成功 (pid=%d", pid)
			if port != "" {
				msg += fmt.Sprintf(", port=%s", port)
			}
			msg += ")"
			if framework != "" {
				msg += " [" + framework + "]"
			}
			return &StartResult{
				Success:   true,
				PID:       pid,
				Port:      port,
				LogFile:   logPath,
				Framework: framework,
				Message:   msg,
			}, nil
		}
	}

	// Timed out without a verdict: tear the group down.
	_ = runner.KillProcessGroup(pid, killGrace)
	raw, _ := os.ReadFile(logPath)
	return &StartResult{
		Success: false,
		LogFile: logPath,
		Message: fmt.Sprintf("❌ 启动超时 (%v):\n%s", timeout, logTail(platform.DecodeOutput(raw), 15)),
	}, nil
}

// StartProject detects the project's start command and launches it,
// auto-installing dependencies once if the failure looks install-shaped.
func (m *Manager) StartProject(ctx context.Context, dir string, timeout time.Duration) (*StartResult, error) {
	dir = platform.Workdir(dir)
	proj := DetectProject(dir)
	if proj.Type == ProjectUnknown {
		return &StartResult{
			Success: false,
			Message: "❌ 无法识别项目类型，未找到 package.json 或 Python 入口文件",
		}, nil
	}

	cmd := proj.StartCommand()
	result, err := m.StartDaemon(ctx, cmd, dir, timeout)
	if err != nil {
		return nil, err
	}
	if result.Success {
		return result, nil
	}

	raw, _ := os.ReadFile(result.LogFile)
	combined := platform.DecodeOutput(raw)
	if !matchesAny(installNeededPatterns, combined) {
		return result, nil
	}

	installCmd := proj.InstallCommand()
	if m.logger != nil {
		m.logger.Infof("daemon failure looks install-shaped; running %q", installCmd)
	}
	installRes, installErr := m.runner.RunCapture(ctx, installCmd, runner.Options{
		Cwd:     dir,
		Timeout: 120 * time.Second,
	})
	if installErr != nil || !installRes.Success() {
		result.Message += "\n⚠️ 自动安装依赖失败，请手动执行 " + installCmd
		return result, nil
	}

	// One retry after a successful install.
	return m.StartDaemon(ctx, cmd, dir, timeout)
}

// BuildProject runs the project's build command to completion (oneshot mode).
func (m *Manager) BuildProject(ctx context.Context, dir string) (*runner.Result, string, error) {
	dir = platform.Workdir(dir)
	proj := DetectProject(dir)
	if proj.Type == ProjectUnknown {
		return nil, "", fmt.Errorf("无法识别项目类型")
	}
	cmd := proj.BuildCommand()
	res, err := m.runner.RunCapture(ctx, cmd, runner.Options{Cwd: dir, Timeout: 300 * time.Second})
	return res, cmd, err
}
