package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "go duration string", input: `"30s"`, want: 30 * time.Second},
		{name: "compound string", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "number of seconds", input: `45`, want: 45 * time.Second},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage string", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var back Duration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 90*time.Second, back.Std())
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", cfg.Primary.Model)

	// The defaults should have been written back for the user to edit.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"primary": {"model": "glm-4", "base_url": "https://open.bigmodel.cn/api/paas/v4"},
		"security": {"command_timeout": "10s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "glm-4", cfg.Primary.Model)
	assert.Equal(t, 10*time.Second, cfg.Security.CommandTimeout.Std())
	// Untouched sections fall back to defaults.
	assert.Equal(t, 20, cfg.Memory.HistoryLimit)
	assert.Equal(t, ".devagent/processes.json", cfg.Process.StatePath)
	assert.Equal(t, time.Hour, cfg.MetricsExportInterval.Std())
}

func TestLoadResolvesEnvKeys(t *testing.T) {
	t.Setenv("TEST_DEVAGENT_KEY", "sk-123456")

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"primary": {"model": "m", "base_url": "http://localhost:8000/v1", "api_key": "${TEST_DEVAGENT_KEY}"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-123456", cfg.Primary.APIKey)
}

func TestLoadAssignsServerNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"primary": {"model": "m", "base_url": "http://localhost:8000/v1"},
		"mcp": {"mcpServers": {"weather": {"command": "weather-server"}}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "weather", cfg.MCP.Servers["weather"].Name)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Primary.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsServerWithoutCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"primary": {"model": "m", "base_url": "http://localhost:8000/v1"},
		"mcp": {"mcpServers": {"broken": {"args": ["--port", "1"]}}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
