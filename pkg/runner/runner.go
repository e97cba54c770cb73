package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/mingkeli/devagent/pkg/platform"
	"github.com/mingkeli/devagent/pkg/utils"
)

// Safety controls which commands the runner refuses or questions.
type Safety struct {
	DenyList        []string
	AllowedPrefixes []string
	ConfirmOnRisky  bool
	ShellByDefault  bool
	DefaultTimeout  time.Duration
}

// DefaultAllowedPrefixes whitelists commands considered safe even when the
// risky heuristic fires. Package-manager installs are included so daemon
// auto-recovery never stalls on a confirmation prompt.
var DefaultAllowedPrefixes = []string{
	"git ", "npm ", "pnpm ", "yarn ", "pip ", "go ", "ls ", "cat ", "open ",
}

// riskyMetaChars are the shell metacharacters that mark a command risky.
const riskyMetaChars = ";|&><`$()"

// Result captures one finished command.
type Result struct {
	ExitCode   int     `json:"exit_code"`
	Stdout     string  `json:"stdout"`
	Stderr     string  `json:"stderr"`
	DurationMS float64 `json:"duration_ms"`
	TimedOut   bool    `json:"timed_out"`
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// Options adjust a single RunCapture invocation.
type Options struct {
	Cwd     string
	Timeout time.Duration
	// Shell forces shell interpretation; when nil the Safety default applies.
	Shell *bool
}

// Runner executes commands with safety checks and structured observability.
type Runner struct {
	safety        Safety
	logger        *utils.Logger
	confirm       func(prompt string) bool
	customConfirm bool
}

// NewRunner creates a runner. A nil confirm falls back to reading stdin,
// which is only consulted when stdin is a TTY.
func NewRunner(safety Safety, logger *utils.Logger) *Runner {
	if safety.DefaultTimeout <= 0 {
		safety.DefaultTimeout = 30 * time.Second
	}
	if len(safety.AllowedPrefixes) == 0 {
		safety.AllowedPrefixes = DefaultAllowedPrefixes
	}
	return &Runner{safety: safety, logger: logger, confirm: askConfirmation}
}

// SetConfirmFunc overrides the interactive confirmation hook (used by tests).
func (r *Runner) SetConfirmFunc(fn func(prompt string) bool) {
	r.confirm = fn
	r.customConfirm = fn != nil
}

// CheckCommand applies the deny-list and the risky heuristic. It returns an
// error when the command must not run.
func (r *Runner) CheckCommand(command string) error {
	lowered := strings.ToLower(command)
	for _, banned := range r.safety.DenyList {
		if banned != "" && strings.Contains(lowered, strings.ToLower(banned)) {
			return fmt.Errorf("⛔ 危险命令已被拦截: 命中规则 %q", banned)
		}
	}

	if !strings.ContainsAny(command, riskyMetaChars) {
		return nil
	}
	for _, prefix := range r.safety.AllowedPrefixes {
		if strings.HasPrefix(strings.TrimSpace(command), prefix) {
			return nil
		}
	}
	if !r.safety.ConfirmOnRisky {
		return nil
	}
	if !r.customConfirm && !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("⛔ 命令包含特殊字符且无法交互确认，已拒绝执行: %s", command)
	}
	if !r.confirm(fmt.Sprintf("⚠️ 命令包含特殊字符: %s\n是否继续执行? (yes/no): ", command)) {
		return fmt.Errorf("命令执行已被用户取消")
	}
	return nil
}

// RunCapture executes a command, capturing stdout/stderr with a timeout.
// Every invocation emits a structured command_exec event.
func (r *Runner) RunCapture(ctx context.Context, command string, opts Options) (*Result, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("empty command provided")
	}
	if err := r.CheckCommand(command); err != nil {
		r.logEvent(command, opts, nil, err)
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.safety.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	useShell := r.safety.ShellByDefault
	if opts.Shell != nil {
		useShell = *opts.Shell
	}

	var cmd *exec.Cmd
	if useShell {
		shell, args := platform.ShellCommand(command)
		cmd = exec.CommandContext(runCtx, shell, args...)
	} else {
		fields := strings.Fields(command)
		cmd = exec.CommandContext(runCtx, fields[0], fields[1:]...)
	}
	cmd.Dir = platform.Workdir(opts.Cwd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:     platform.DecodeOutput(stdout.Bytes()),
		Stderr:     platform.DecodeOutput(stderr.Bytes()),
		DurationMS: float64(time.Since(start)) / float64(time.Millisecond),
		TimedOut:   runCtx.Err() == context.DeadlineExceeded,
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
	}

	r.logEvent(command, opts, result, err)

	if result.TimedOut {
		return result, fmt.Errorf("command timed out after %v", timeout)
	}
	if err != nil && result.ExitCode == -1 {
		return result, fmt.Errorf("command failed to start: %w", err)
	}
	return result, nil
}

func (r *Runner) logEvent(command string, opts Options, result *Result, err error) {
	if r.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"cmd":   command,
		"shell": r.safety.ShellByDefault,
		"cwd":   platform.Workdir(opts.Cwd),
	}
	if result != nil {
		fields["success"] = result.Success()
		fields["returncode"] = result.ExitCode
		fields["duration_ms"] = result.DurationMS
		fields["out_len"] = len(result.Stdout)
		fields["err_len"] = len(result.Stderr)
		if result.TimedOut {
			fields["timeout"] = true
		}
	} else {
		fields["success"] = false
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.logger.LogEvent("command_exec", fields)
}

func askConfirmation(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y"
}
