package workflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataConversionJSONToYAML(t *testing.T) {
	e := &Engine{}
	s := &State{Exec: ExecutionContext{
		UserInput:     "把这段转成 yaml",
		OriginalInput: "把这段转成 yaml {\"name\": \"devagent\", \"port\": 8080}",
	}}

	delta, err := e.dataConversion(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, delta.Conversion)
	assert.Equal(t, "json", delta.Conversion.SourceFormat)
	assert.Equal(t, "yaml", delta.Conversion.TargetFormat)
	assert.Contains(t, delta.Conversion.Output, "name: devagent")
	assert.Contains(t, delta.Conversion.Output, "port: 8080")
}

func TestDataConversionYAMLToJSON(t *testing.T) {
	e := &Engine{}
	input := "转json\n```yaml\nname: devagent\ntags:\n  - cli\n  - agent\n```"
	s := &State{Exec: ExecutionContext{UserInput: "转json", OriginalInput: input}}

	delta, err := e.dataConversion(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, delta.Conversion)
	assert.Equal(t, "yaml", delta.Conversion.SourceFormat)
	assert.Equal(t, "json", delta.Conversion.TargetFormat)
	assert.JSONEq(t, `{"name":"devagent","tags":["cli","agent"]}`, delta.Conversion.Output)
}

func TestDataConversionPrefersFileRef(t *testing.T) {
	e := &Engine{}
	s := &State{
		Exec:  ExecutionContext{UserInput: "转json", OriginalInput: "转json @config.yml"},
		Files: &FileContext{Refs: []FileRef{{Path: "config.yml", Content: "key: value"}}},
	}

	delta, err := e.dataConversion(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, delta.Conversion)
	assert.Equal(t, "key: value", delta.Conversion.Input)
}

func TestDataConversionNoPayload(t *testing.T) {
	e := &Engine{}
	s := &State{Exec: ExecutionContext{UserInput: "帮我转个格式", OriginalInput: "帮我转个格式"}}

	delta, err := e.dataConversion(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, delta.Conversion)
	assert.Contains(t, *delta.Response, "❓")
}

func TestTargetFormat(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"把数据转json", "json"},
		{"convert this to json please", "json"},
		{"转成 yaml 格式", "yaml"},
		{"输出为 yml", "yaml"},
		{`{"a": 1}`, "yaml"}, // bare JSON defaults to the other format
		{"随便转一下", "json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, targetFormat(tt.input), tt.input)
	}
}

func TestNormalizeYAML(t *testing.T) {
	in := map[interface{}]interface{}{
		"outer": []interface{}{
			map[interface{}]interface{}{2: "two"},
		},
	}
	out, ok := normalizeYAML(in).(map[string]interface{})
	require.True(t, ok)
	inner, ok := out["outer"].([]interface{})[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "two", inner["2"])
}

func TestArgInt(t *testing.T) {
	args := map[string]interface{}{
		"float":  float64(3002),
		"int":    8080,
		"string": " 5173 ",
		"bad":    "not a number",
	}
	assert.Equal(t, 3002, argInt(args, "float"))
	assert.Equal(t, 8080, argInt(args, "int"))
	assert.Equal(t, 5173, argInt(args, "string"))
	assert.Equal(t, 0, argInt(args, "bad"))
	assert.Equal(t, 0, argInt(args, "missing"))
}

func TestNumericArgsNilContext(t *testing.T) {
	pid, port := numericArgs(&State{})
	assert.Zero(t, pid)
	assert.Zero(t, port)
}

func TestFormatResponsePrintsUnstreamedIntents(t *testing.T) {
	var out bytes.Buffer
	e := &Engine{Deps: Deps{Out: &out}}
	s := &State{
		Exec:     ExecutionContext{Intent: IntentTerminalCommand},
		Response: "✅ 已执行: ls",
	}

	delta, err := e.formatResponse(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "✅ 已执行: ls\n", out.String())
	assert.Equal(t, "✅ 已执行: ls", *delta.Response)
}

func TestFormatResponseSkipsStreamedIntents(t *testing.T) {
	var out bytes.Buffer
	e := &Engine{Deps: Deps{Out: &out}}
	s := &State{
		Exec:     ExecutionContext{Intent: IntentQuestion},
		Response: "已经流式输出过的回答",
	}

	_, err := e.formatResponse(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestFormatResponseDefaultMessage(t *testing.T) {
	var out bytes.Buffer
	e := &Engine{Deps: Deps{Out: &out}}
	s := &State{Exec: ExecutionContext{Intent: IntentStopProject}}

	delta, err := e.formatResponse(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "🤷 本次没有产生可展示的结果。", *delta.Response)
	assert.Contains(t, out.String(), "🤷")
}

func TestBuildSuccessMessage(t *testing.T) {
	msg := buildSuccessMessage("npm run build", 1212.905)
	assert.Equal(t, "🏗️ 构建成功: npm run build (耗时 1213 ms)", msg)
	assert.NotContains(t, msg, "%!")
}

func TestStreamedIntent(t *testing.T) {
	assert.True(t, streamedIntent(IntentQuestion))
	assert.True(t, streamedIntent(IntentUnknown))
	assert.False(t, streamedIntent(IntentTerminalCommand))
	assert.False(t, streamedIntent(IntentFullGitWorkflow))
	assert.False(t, streamedIntent(IntentDataConversion))
}
