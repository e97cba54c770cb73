package procman

import (
	"fmt"
	"strings"
	"time"

	"github.com/mingkeli/devagent/pkg/runner"
)

// stopGrace is how long TERM gets before KILL during a stop request.
const stopGrace = 1 * time.Second

// EmptyDiagnoseMessage is emitted when nothing is known about any process.
const EmptyDiagnoseMessage = "📭 当前没有正在管理的进程，也没有指定 pid 或端口。"

// StopByPID terminates the process group of a registered pid.
func (m *Manager) StopByPID(pid int) (string, error) {
	if err := runner.KillProcessGroup(pid, stopGrace); err != nil {
		return "", fmt.Errorf("停止进程 %d 失败: %w", pid, err)
	}
	if err := m.store.remove(pid); err != nil && m.logger != nil {
		m.logger.Warnf("failed to record stop event for pid %d: %v", pid, err)
	}
	return fmt.Sprintf("✅ 已停止进程 %d", pid), nil
}

// StopByPort terminates every pid listening on the port.
func (m *Manager) StopByPort(port int) (string, error) {
	pids, err := runner.PIDsListeningOn(port)
	if err != nil {
		return "", fmt.Errorf("查询端口 %d 占用失败: %w", port, err)
	}
	if len(pids) == 0 {
		return fmt.Sprintf("📭 端口 %d 没有被监听", port), nil
	}
	var stopped []string
	for _, pid := range pids {
		if err := runner.KillProcessGroup(pid, stopGrace); err != nil {
			if m.logger != nil {
				m.logger.Warnf("failed to stop pid %d on port %d: %v", pid, port, err)
			}
			continue
		}
		_ = m.store.remove(pid)
		stopped = append(stopped, fmt.Sprintf("%d", pid))
	}
	if len(stopped) == 0 {
		return "", fmt.Errorf("端口 %d 上的进程均停止失败", port)
	}
	return fmt.Sprintf("✅ 已停止端口 %d 上的进程: %s", port, strings.Join(stopped, ", ")), nil
}

// StopAll terminates every registered process.
func (m *Manager) StopAll() (string, error) {
	records := m.store.list()
	if len(records) == 0 {
		return "📭 当前没有正在管理的进程", nil
	}
	var stopped int
	for _, rec := range records {
		if err := runner.KillProcessGroup(rec.PID, stopGrace); err != nil {
			if m.logger != nil {
				m.logger.Warnf("failed to stop pid %d: %v", rec.PID, err)
			}
			continue
		}
		_ = m.store.remove(rec.PID)
		stopped++
	}
	return fmt.Sprintf("✅ 已停止 %d 个进程", stopped), nil
}

// Diagnose produces a human-readable report about a pid, a port, or the
// whole registry. With nothing supplied and nothing registered, the fixed
// empty-state message is returned, plus the most recent history record when
// history exists.
func (m *Manager) Diagnose(pid int, port int) string {
	var b strings.Builder

	if pid > 0 {
		if runner.IsProcessAlive(pid) {
			b.WriteString(fmt.Sprintf("✅ 进程 %d 正在运行\n", pid))
			if rec, ok := m.store.get(pid); ok {
				b.WriteString(fmt.Sprintf("   命令: %s\n   日志: %s\n", rec.Command, rec.LogFile))
			}
		} else {
			b.WriteString(fmt.Sprintf("❌ 进程 %d 不存在\n", pid))
		}
	}

	if port > 0 {
		pids, err := runner.PIDsListeningOn(port)
		switch {
		case err != nil:
			b.WriteString(fmt.Sprintf("⚠️ 无法检查端口 %d: %v\n", port, err))
		case len(pids) > 0:
			b.WriteString(fmt.Sprintf("✅ 端口 %d 正在被监听 (pid: %v)\n", port, pids))
		default:
			b.WriteString(fmt.Sprintf("❌ 端口 %d 没有被监听\n", port))
		}
	}

	records := m.store.list()
	if pid <= 0 && port <= 0 && len(records) == 0 {
		b.WriteString(EmptyDiagnoseMessage)
		if events := m.store.history(); len(events) > 0 {
			last := events[len(events)-1]
			b.WriteString(fmt.Sprintf("\n🕘 最近记录: %s pid=%d cmd=%q", last.Event, last.PID, last.Command))
			if last.Port != "" {
				b.WriteString(" port=" + last.Port)
			}
		}
		return b.String()
	}

	if len(records) > 0 {
		b.WriteString(fmt.Sprintf("\n📋 当前管理的进程 (%d):\n", len(records)))
		for _, rec := range records {
			line := fmt.Sprintf("  - pid=%d cmd=%q", rec.PID, rec.Command)
			if rec.Port != "" {
				line += " port=" + rec.Port
			}
			line += fmt.Sprintf(" 启动于 %s", rec.StartedAt.Format("15:04:05"))
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
