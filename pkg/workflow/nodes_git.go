package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/memory"
	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/runner"
)

// runGit executes one git command and records the step in GitContext.
// A failure marks the context Failed so the chain routers short-circuit.
func (e *Engine) runGit(ctx context.Context, s *State, label, command string) (*GitContext, string, error) {
	gc := GitContext{}
	if s.Git != nil {
		gc = *s.Git
	}

	op := e.Metrics.Measure(metrics.OpCommandExec, "git_"+label)
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
		gc.Failed = true
		gc.Steps = append(gc.Steps, fmt.Sprintf("❌ %s: %s", label, errMsg))
		return &gc, "", nil
	}
	gc.Steps = append(gc.Steps, fmt.Sprintf("✅ %s", label))
	return &gc, strings.TrimSpace(res.Stdout), nil
}

func gitReport(gc *GitContext) string {
	var b strings.Builder
	b.WriteString("🔀 Git 操作:\n")
	for _, step := range gc.Steps {
		b.WriteString("  " + step + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// generateCommit handles the single-shot commit intent: stage everything,
// generate a message from the staged diff, and commit.
func (e *Engine) generateCommit(ctx context.Context, s *State) (*Delta, error) {
	gc, _, _ := e.runGit(ctx, s, "add", "git add -A")
	if gc.Failed {
		return &Delta{Git: gc, Response: strPtr(gitReport(gc))}, nil
	}

	msg, err := e.commitMessageFromDiff(ctx, s)
	if err != nil {
		gc.Failed = true
		gc.Steps = append(gc.Steps, fmt.Sprintf("❌ commit message: %v", err))
		return &Delta{Git: gc, Response: strPtr(gitReport(gc))}, nil
	}
	gc.CommitMessage = msg
	gc.Steps = append(gc.Steps, fmt.Sprintf("✅ message: %s", msg))

	sg := *s
	sg.Git = gc
	gc, _, _ = e.runGit(ctx, &sg, "commit", fmt.Sprintf("git commit -m %q", msg))
	return &Delta{Git: gc, Response: strPtr(gitReport(gc))}, nil
}

// commitMessageFromDiff asks the LLM for a one-line conventional commit
// message based on the staged changes.
func (e *Engine) commitMessageFromDiff(ctx context.Context, s *State) (string, error) {
	res, err := e.Runner.RunCapture(ctx, "git diff --cached --stat", runner.Options{Cwd: e.Config.Workdir})
	diff := ""
	if err == nil && res.Success() {
		diff = res.Stdout
	}
	if strings.TrimSpace(diff) == "" {
		return "", fmt.Errorf("没有已暂存的改动")
	}

	messages := []llm.Message{
		{Role: "system", Content: "根据改动摘要生成一条简洁的英文 conventional commit 提交信息。只输出一行信息本身，不要引号和解释。"},
		{Role: "user", Content: diff},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextCommandGeneration, 2)
	msg := cleanCommandOutput(result.Content)
	if msg == "" {
		msg = "chore: update"
	}
	return strings.ReplaceAll(msg, `"`, ""), nil
}

func (e *Engine) gitAdd(ctx context.Context, s *State) (*Delta, error) {
	gc, _, _ := e.runGit(ctx, s, "add", "git add -A")
	delta := &Delta{Git: gc}
	if gc.Failed {
		delta.Response = strPtr(gitReport(gc))
	}
	return delta, nil
}

func (e *Engine) gitCommitMessageGen(ctx context.Context, s *State) (*Delta, error) {
	gc := GitContext{}
	if s.Git != nil {
		gc = *s.Git
	}
	msg, err := e.commitMessageFromDiff(ctx, s)
	if err != nil {
		gc.Failed = true
		gc.Steps = append(gc.Steps, fmt.Sprintf("❌ commit message: %v", err))
		return &Delta{Git: &gc, Response: strPtr(gitReport(&gc))}, nil
	}
	gc.CommitMessage = msg
	gc.Steps = append(gc.Steps, fmt.Sprintf("✅ message: %s", msg))
	return &Delta{Git: &gc}, nil
}

func (e *Engine) gitCommitExec(ctx context.Context, s *State) (*Delta, error) {
	msg := "chore: update"
	if s.Git != nil && s.Git.CommitMessage != "" {
		msg = s.Git.CommitMessage
	}
	gc, _, _ := e.runGit(ctx, s, "commit", fmt.Sprintf("git commit -m %q", msg))
	delta := &Delta{Git: gc}
	if gc.Failed || s.Exec.Intent != IntentFullGitWorkflow {
		delta.Response = strPtr(gitReport(gc))
	}
	return delta, nil
}

func (e *Engine) gitPull(ctx context.Context, s *State) (*Delta, error) {
	gc, out, _ := e.runGit(ctx, s, "pull", "git pull")
	delta := &Delta{Git: gc}
	if gc.Failed || s.Exec.Intent == IntentGitPull {
		report := gitReport(gc)
		if out != "" {
			report += "\n" + out
		}
		delta.Response = strPtr(report)
	}
	return delta, nil
}

func (e *Engine) gitPush(ctx context.Context, s *State) (*Delta, error) {
	gc, _, _ := e.runGit(ctx, s, "push", "git push")
	return &Delta{Git: gc, Response: strPtr(gitReport(gc))}, nil
}
