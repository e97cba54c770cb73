package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastJSONMessage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		isNil  bool
		result string
	}{
		{
			name:   "single response",
			output: `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}` + "\n",
			result: `{"ok":true}`,
		},
		{
			name: "log noise before response",
			output: "starting server...\n" +
				"[debug] loaded 3 tools\n" +
				`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}` + "\n",
			result: `{"tools":[]}`,
		},
		{
			name: "last parseable line wins",
			output: `{"jsonrpc":"2.0","id":1,"result":"first"}` + "\n" +
				`{"jsonrpc":"2.0","id":2,"result":"second"}` + "\n",
			result: `"second"`,
		},
		{
			name: "json-looking log lines without result are skipped",
			output: `{"level":"info","msg":"ready"}` + "\n" +
				`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n",
			result: `{}`,
		},
		{
			name:   "no parseable line",
			output: "nothing here\nstill nothing\n",
			isNil:  true,
		},
		{
			name:   "empty output",
			output: "",
			isNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := lastJSONMessage(tt.output)
			if tt.isNil {
				assert.Nil(t, msg)
				return
			}
			require.NotNil(t, msg)
			assert.JSONEq(t, tt.result, string(msg.Result))
		})
	}
}

func TestRoundTripWithFakeServer(t *testing.T) {
	// A fake stdio server: some log noise, then the terminal response line.
	cfg := ServerConfig{
		Name:    "fake",
		Command: "sh",
		Args: []string{"-c",
			`echo "booting up"; echo '{"jsonrpc":"2.0","id":1,"result":{"tools":[{"name":"echo_tool","description":"echo"}]}}'`},
	}

	msg, err := roundTrip(context.Background(), cfg, Message{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.NoError(t, err)
	require.NotNil(t, msg)

	var result listResult
	require.NoError(t, json.Unmarshal(msg.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "echo_tool", result.Tools[0].Name)
}

func TestRoundTripServerError(t *testing.T) {
	cfg := ServerConfig{
		Name:    "erroring",
		Command: "sh",
		Args:    []string{"-c", `echo '{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}'`},
	}

	_, err := roundTrip(context.Background(), cfg, Message{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestRoundTripNoResponse(t *testing.T) {
	cfg := ServerConfig{Name: "silent", Command: "sh", Args: []string{"-c", "true"}}
	_, err := roundTrip(context.Background(), cfg, Message{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	assert.Error(t, err)
}

func TestRoundTripTimeout(t *testing.T) {
	cfg := ServerConfig{Name: "slow", Command: "sleep", Args: []string{"5"}}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := roundTrip(ctx, cfg, Message{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestDispatcherUnknownServer(t *testing.T) {
	d := NewDispatcher(map[string]ServerConfig{}, nil)
	outcome := d.CallTool(context.Background(), "ghost", "some_tool", nil)
	assert.False(t, outcome.Success)
	assert.Equal(t, "未知的工具: some_tool", outcome.Error)
}

func TestDispatcherTextContent(t *testing.T) {
	servers := map[string]ServerConfig{
		"fake": {
			Command: "sh",
			Args: []string{"-c",
				`echo '{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}}'`},
		},
	}
	d := NewDispatcher(servers, nil)

	outcome := d.CallTool(context.Background(), "fake", "any", map[string]interface{}{"q": "x"})
	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, "line one\nline two", outcome.Result)
}

func TestDispatcherErrorContent(t *testing.T) {
	servers := map[string]ServerConfig{
		"fake": {
			Command: "sh",
			Args: []string{"-c",
				`echo '{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"查询失败"}],"isError":true}}'`},
		},
	}
	d := NewDispatcher(servers, nil)

	outcome := d.CallTool(context.Background(), "fake", "any", nil)
	assert.False(t, outcome.Success)
	assert.Equal(t, "查询失败", outcome.Error)
}
