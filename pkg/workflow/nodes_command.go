package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/memory"
	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/platform"
	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/utils"
)

// generateCommand asks the LLM for exactly one shell command fitting the
// current OS. Explanations and code fences are stripped defensively even
// though the prompt forbids them.
func (e *Engine) generateCommand(ctx context.Context, s *State) (*Delta, error) {
	prompt := fmt.Sprintf(
		"你是一个 %s 终端命令生成器。根据用户请求输出一条可以直接执行的 shell 命令。"+
			"只输出命令本身，不要输出解释、注释或代码块标记。",
		platform.OSName())
	messages := []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: s.Exec.UserInput},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextCommandGeneration, 3)

	command := cleanCommandOutput(result.Content)
	if command == "" {
		return nil, fmt.Errorf("命令生成失败: 模型未返回有效命令")
	}
	return &Delta{Command: &CommandContext{Command: command}}, nil
}

// cleanCommandOutput strips fences and keeps the first non-empty line.
func cleanCommandOutput(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.TrimPrefix(line, "$ ")
	}
	return ""
}

// executeCommand runs the generated command through the runner. Failures
// are recovered through the resilience manager rather than raised.
func (e *Engine) executeCommand(ctx context.Context, s *State) (*Delta, error) {
	if s.Command == nil || s.Command.Command == "" {
		return nil, fmt.Errorf("没有待执行的命令")
	}
	command := s.Command.Command

	op := e.Metrics.Measure(metrics.OpCommandExec, "execute_command")
	res, err := e.Runner.RunCapture(ctx, command, runner.Options{Cwd: e.Config.Workdir})
	ok := err == nil && res.Success()
	if ok {
		op.Done()
	} else {
		op.DoneErr(fmt.Errorf("%s", describeFailure(res, err)))
	}

	e.Memory.AddCommand(memory.CommandRecord{Command: command, Success: ok})

	cc := *s.Command
	if !ok {
		errMsg := describeFailure(res, err)
		cc.Results = append(cc.Results, CommandOutcome{Command: command, Success: false, ErrorMsg: errMsg, Output: outputOf(res)})
		ectx := resilience.NewErrorContext(resilience.ErrCommandExec, fmt.Errorf("%s", errMsg),
			"execute_command", s.Exec.UserInput, resilience.OpCommandExec)
		fallback := e.Resilience.HandleError(fmt.Errorf("%s", errMsg), ectx)
		return &Delta{
			Command:  &cc,
			Response: strPtr(fmt.Sprintf("❌ 命令执行失败: %s\n%s\n%s", command, errMsg, fallback.Response)),
		}, nil
	}

	e.Resilience.RecordSuccess(resilience.OpCommandExec)
	cc.Results = append(cc.Results, CommandOutcome{Command: command, Success: true, Output: res.Stdout})
	response := fmt.Sprintf("✅ 已执行: %s", command)
	if out := strings.TrimSpace(res.Stdout); out != "" {
		response += "\n" + out
	}
	return &Delta{Command: &cc, Response: strPtr(response)}, nil
}

func describeFailure(res *runner.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	msg := fmt.Sprintf("退出码 %d", res.ExitCode)
	if tail := strings.TrimSpace(res.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func outputOf(res *runner.Result) string {
	if res == nil {
		return ""
	}
	return res.Stdout + res.Stderr
}

// multiStepPlanner asks the LLM to break a request into ordered commands,
// or into files to create. The contract is a JSON object so routing stays
// deterministic.
func (e *Engine) multiStepPlanner(ctx context.Context, s *State) (*Delta, error) {
	prompt := fmt.Sprintf(
		"你是一个 %s 任务规划器。把用户请求拆解为有序步骤，只输出 JSON:\n"+
			`{"needs_file_creation": bool, "commands": ["cmd", ...], "files": [{"path": "...", "content": "..."}]}`+
			"\ncommands 中是可直接执行的 shell 命令。不要输出其他内容。",
		platform.OSName())
	messages := []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: s.Exec.UserInput},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextMultiStepPlanning, 3)

	parsed, err := utils.ExtractJSONMap(result.Content)
	if err != nil {
		return nil, fmt.Errorf("任务规划失败: %w", err)
	}

	cc := &CommandContext{}
	if v, ok := parsed["needs_file_creation"].(bool); ok {
		cc.NeedsFileCreation = v
	}
	if cmds, ok := parsed["commands"].([]interface{}); ok {
		for _, c := range cmds {
			if cmd, ok := c.(string); ok && strings.TrimSpace(cmd) != "" {
				cc.Commands = append(cc.Commands, cmd)
			}
		}
	}
	if files, ok := parsed["files"].([]interface{}); ok {
		for _, f := range files {
			entry, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			path, _ := entry["path"].(string)
			content, _ := entry["content"].(string)
			if path != "" {
				cc.PlannedFiles = append(cc.PlannedFiles, PlannedFile{Path: path, Content: content})
			}
		}
	}
	if len(cc.Commands) == 0 && len(cc.PlannedFiles) == 0 {
		return nil, fmt.Errorf("任务规划失败: 计划为空")
	}
	return &Delta{Command: cc}, nil
}

// executeMultiCommands runs the planned commands in order. A failing step
// is recorded but does not stop the sequence; the report covers every step.
func (e *Engine) executeMultiCommands(ctx context.Context, s *State) (*Delta, error) {
	if s.Command == nil || len(s.Command.Commands) == 0 {
		return nil, fmt.Errorf("没有待执行的命令序列")
	}

	cc := *s.Command
	var report strings.Builder
	report.WriteString(fmt.Sprintf("📋 多步执行 (%d 步):\n", len(cc.Commands)))
	for i, command := range cc.Commands {
		op := e.Metrics.Measure(metrics.OpCommandExec, "execute_multi")
		res, err := e.Runner.RunCapture(ctx, command, runner.Options{Cwd: e.Config.Workdir})
		ok := err == nil && res.Success()
		if ok {
			op.Done()
		} else {
			op.DoneErr(fmt.Errorf("%s", describeFailure(res, err)))
		}
		e.Memory.AddCommand(memory.CommandRecord{Command: command, Success: ok})

		if !ok {
			errMsg := describeFailure(res, err)
			cc.Results = append(cc.Results, CommandOutcome{Command: command, Success: false, ErrorMsg: errMsg})
			report.WriteString(fmt.Sprintf("  %d. ❌ %s (%s)\n", i+1, command, errMsg))
			continue
		}
		cc.Results = append(cc.Results, CommandOutcome{Command: command, Success: true, Output: res.Stdout})
		report.WriteString(fmt.Sprintf("  %d. ✅ %s\n", i+1, command))
	}
	return &Delta{Command: &cc, Response: strPtr(strings.TrimRight(report.String(), "\n"))}, nil
}

// fileCreator writes the planned files as UTF-8, creating parent
// directories. Overwriting an existing file logs a unified diff preview so
// the change is auditable.
func (e *Engine) fileCreator(ctx context.Context, s *State) (*Delta, error) {
	if s.Command == nil || len(s.Command.PlannedFiles) == 0 {
		return nil, fmt.Errorf("没有待创建的文件")
	}
	workdir := platform.Workdir(e.Config.Workdir)

	var report strings.Builder
	report.WriteString(fmt.Sprintf("📄 文件创建 (%d 个):\n", len(s.Command.PlannedFiles)))
	for _, file := range s.Command.PlannedFiles {
		path := file.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(workdir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			report.WriteString(fmt.Sprintf("  ❌ %s (%v)\n", file.Path, err))
			continue
		}
		if prev, err := os.ReadFile(path); err == nil {
			e.logOverwriteDiff(path, string(prev), file.Content)
		}
		if err := os.WriteFile(path, []byte(file.Content), 0644); err != nil {
			report.WriteString(fmt.Sprintf("  ❌ %s (%v)\n", file.Path, err))
			continue
		}
		report.WriteString(fmt.Sprintf("  ✅ %s\n", file.Path))
	}
	return &Delta{Response: strPtr(strings.TrimRight(report.String(), "\n"))}, nil
}

// logOverwriteDiff records what an overwrite changed.
func (e *Engine) logOverwriteDiff(path, before, after string) {
	if e.Logger == nil {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	e.Logger.Infof("overwriting %s:\n%s", path, dmp.DiffPrettyText(diffs))
}
