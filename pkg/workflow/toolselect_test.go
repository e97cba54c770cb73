package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOpenDirRequest(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"打开下载目录", true},
		{"帮我打开项目文件夹", true},
		{"open the downloads folder", true},
		{"进入 src 目录", true},
		{"打开网易云音乐", false}, // verb without a directory noun
		{"查看天气", false},
		{"列出所有文件", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isOpenDirRequest(tt.input), tt.input)
	}
}

func TestParseToolSelection(t *testing.T) {
	sel := parseToolSelection(`{"tool": "run_command", "args": {}}`)
	assert.Equal(t, "run_command", sel.Tool)

	sel = parseToolSelection("```json\n{\"tool\": \"stop_project\", \"args\": {\"port\": \"3000\"}}\n```")
	assert.Equal(t, "stop_project", sel.Tool)
	assert.Equal(t, "3000", sel.Args["port"])

	// Chatty or broken output degrades to "none", never an error.
	sel = parseToolSelection("我觉得应该直接回答这个问题")
	assert.Equal(t, "none", sel.Tool)

	sel = parseToolSelection(`{"tool": broken`)
	assert.Equal(t, "none", sel.Tool)

	// Missing args get an empty map, not nil.
	sel = parseToolSelection(`{"tool": "query_todo"}`)
	require.NotNil(t, sel.Args)
}

func TestRescueNumericArgs(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		args  map[string]interface{}
		input string
		want  interface{}
	}{
		{
			name:  "port from chinese suffix",
			tool:  "diagnose_project",
			args:  map[string]interface{}{},
			input: "看看 3000 端口还活着吗",
			want:  "3000",
		},
		{
			name:  "port keyword",
			tool:  "stop_project",
			args:  map[string]interface{}{},
			input: "stop the server on port 5173",
			want:  "5173",
		},
		{
			name:  "localhost mention",
			tool:  "diagnose_project",
			args:  map[string]interface{}{},
			input: "localhost:8080 打不开了",
			want:  "8080",
		},
		{
			name:  "existing arg untouched",
			tool:  "stop_project",
			args:  map[string]interface{}{"port": "9999"},
			input: "stop port 3000",
			want:  "9999",
		},
		{
			name:  "other tools not rescued",
			tool:  "run_command",
			args:  map[string]interface{}{},
			input: "port 3000",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &toolSelection{Tool: tt.tool, Args: tt.args}
			rescueNumericArgs(sel, tt.input)
			assert.Equal(t, tt.want, sel.Args["port"])
		})
	}
}

func TestToolIntentsCoverAllBuiltins(t *testing.T) {
	for _, spec := range builtinSpecs {
		_, ok := toolIntents[spec.name]
		assert.True(t, ok, "builtin %s has no intent mapping", spec.name)
	}
}

func TestParseIntentClosedEnum(t *testing.T) {
	assert.Equal(t, IntentGitPull, ParseIntent("git_pull"))
	assert.Equal(t, IntentUnknown, ParseIntent("made_up_intent"))
	assert.Equal(t, IntentUnknown, ParseIntent(""))
}
