package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingkeli/devagent/pkg/runner"
)

func TestCleanCommandOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare command", "ls -la", "ls -la"},
		{"fenced", "```bash\nls -la\n```", "ls -la"},
		{"dollar prompt", "$ git status", "git status"},
		{"leading comment skipped", "# 查看文件\nls -la", "ls -la"},
		{"blank lines skipped", "\n\n  du -sh .\n", "du -sh ."},
		{"keeps first command only", "ls\npwd", "ls"},
		{"nothing usable", "```\n```\n# only comments", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCommandOutput(tt.content))
		})
	}
}

func TestDescribeFailure(t *testing.T) {
	assert.Equal(t, "连接超时", describeFailure(nil, errors.New("连接超时")))

	res := &runner.Result{ExitCode: 2, Stderr: "fatal: not a git repository\n"}
	assert.Equal(t, "退出码 2: fatal: not a git repository", describeFailure(res, nil))

	res = &runner.Result{ExitCode: 1}
	assert.Equal(t, "退出码 1", describeFailure(res, nil))
}

func TestOutputOf(t *testing.T) {
	assert.Empty(t, outputOf(nil))
	assert.Equal(t, "out\nerr\n", outputOf(&runner.Result{Stdout: "out\n", Stderr: "err\n"}))
}
