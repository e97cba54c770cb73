package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mingkeli/devagent/pkg/mcp"
)

// ProviderConfig describes one LLM provider endpoint. The endpoint must
// speak the OpenAI-compatible chat completion surface.
type ProviderConfig struct {
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Temperature float64 `json:"temperature"`
}

// SecurityConfig controls command-execution safety.
type SecurityConfig struct {
	DangerousCommands []string `json:"dangerous_commands"`
	CommandTimeout    Duration `json:"command_timeout"`
	ShellByDefault    bool     `json:"shell_by_default"`
	ConfirmOnRisky    bool     `json:"confirm_on_risky"`
	AllowedPrefixes   []string `json:"allowed_prefixes"`
}

// MemoryConfig bounds the in-memory conversation buffers.
type MemoryConfig struct {
	HistoryLimit        int `json:"history_limit"`
	CommandHistoryLimit int `json:"command_history_limit"`
}

// ProcessConfig locates the persistent process registry files.
type ProcessConfig struct {
	StatePath   string `json:"state_path"`
	HistoryPath string `json:"history_path"`
}

// MCPConfig configures external tool servers and the discovery cache.
type MCPConfig struct {
	Servers   map[string]mcp.ServerConfig `json:"mcpServers"`
	CachePath string                      `json:"cache_path"`
	CacheTTL  Duration                    `json:"cache_ttl"`
}

// Config is the single immutable configuration value loaded at startup.
type Config struct {
	Primary   ProviderConfig    `json:"primary"`
	Secondary ProviderConfig    `json:"secondary"`
	Headers   map[string]string `json:"headers"`
	Security  SecurityConfig    `json:"security"`
	Memory    MemoryConfig      `json:"memory"`
	Process   ProcessConfig     `json:"process"`
	MCP       MCPConfig         `json:"mcp"`

	Workdir               string   `json:"workdir"`
	MetricsExportPath     string   `json:"metrics_export_path"`
	MetricsExportInterval Duration `json:"metrics_export_interval"`
	MonitorInterval       Duration `json:"monitor_interval"`
}

// Duration unmarshals from either a Go duration string ("30s") or a JSON
// number of seconds, so hand-edited config files stay forgiving.
type Duration time.Duration

// UnmarshalJSON implements the forgiving duration decoding.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val) * time.Second)
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}
	return nil
}

// MarshalJSON writes durations back as strings.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Primary: ProviderConfig{
			Model:       "deepseek-chat",
			BaseURL:     "https://api.deepseek.com/v1",
			APIKey:      "${DEEPSEEK_API_KEY}",
			Temperature: 0.3,
		},
		Secondary: ProviderConfig{
			Model:       "qwen-plus",
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
			APIKey:      "${DASHSCOPE_API_KEY}",
			Temperature: 0.3,
		},
		Headers: map[string]string{},
		Security: SecurityConfig{
			DangerousCommands: []string{
				"rm -rf /", "mkfs", "dd if=", ":(){", "chmod -R 777 /",
				"> /dev/sda", "shutdown", "reboot", "halt", "poweroff",
			},
			CommandTimeout:  Duration(30 * time.Second),
			ShellByDefault:  true,
			ConfirmOnRisky:  true,
			AllowedPrefixes: []string{"git ", "npm ", "pnpm ", "yarn ", "pip ", "go ", "ls ", "cat "},
		},
		Memory: MemoryConfig{HistoryLimit: 20, CommandHistoryLimit: 50},
		Process: ProcessConfig{
			StatePath:   ".devagent/processes.json",
			HistoryPath: ".devagent/process_history.json",
		},
		MCP: MCPConfig{
			Servers:   map[string]mcp.ServerConfig{},
			CachePath: ".mcp_tools_cache.json",
			CacheTTL:  Duration(24 * time.Hour),
		},
		MetricsExportPath:     ".devagent/metrics_export.json",
		MetricsExportInterval: Duration(time.Hour),
		MonitorInterval:       Duration(60 * time.Second),
	}
}

// Load reads config.json from path, layering it over defaults. A missing
// file writes the defaults back so the user has something to edit. A .env
// alongside the config is loaded first so ${VAR} api-key references resolve.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := cfg.write(path); werr != nil {
			return nil, fmt.Errorf("failed to write default config: %w", werr)
		}
		cfg.resolveEnv()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	cfg.resolveEnv()

	// Server names come from the map keys.
	for name, sc := range cfg.MCP.Servers {
		sc.Name = name
		cfg.MCP.Servers[name] = sc
	}
	return cfg, cfg.Validate()
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Security.CommandTimeout == 0 {
		c.Security.CommandTimeout = def.Security.CommandTimeout
	}
	if c.Memory.HistoryLimit == 0 {
		c.Memory.HistoryLimit = def.Memory.HistoryLimit
	}
	if c.Memory.CommandHistoryLimit == 0 {
		c.Memory.CommandHistoryLimit = def.Memory.CommandHistoryLimit
	}
	if c.Process.StatePath == "" {
		c.Process.StatePath = def.Process.StatePath
	}
	if c.Process.HistoryPath == "" {
		c.Process.HistoryPath = def.Process.HistoryPath
	}
	if c.MCP.CachePath == "" {
		c.MCP.CachePath = def.MCP.CachePath
	}
	if c.MCP.CacheTTL == 0 {
		c.MCP.CacheTTL = def.MCP.CacheTTL
	}
	if c.MetricsExportPath == "" {
		c.MetricsExportPath = def.MetricsExportPath
	}
	if c.MetricsExportInterval == 0 {
		c.MetricsExportInterval = def.MetricsExportInterval
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = def.MonitorInterval
	}
}

// resolveEnv expands ${VAR} references in api keys.
func (c *Config) resolveEnv() {
	c.Primary.APIKey = os.Expand(c.Primary.APIKey, os.Getenv)
	c.Secondary.APIKey = os.Expand(c.Secondary.APIKey, os.Getenv)
}

// Validate checks the fields the core cannot run without.
func (c *Config) Validate() error {
	if c.Primary.Model == "" || c.Primary.BaseURL == "" {
		return fmt.Errorf("primary provider requires model and base_url")
	}
	for name, sc := range c.MCP.Servers {
		if sc.Command == "" {
			return fmt.Errorf("mcp server %s requires a command", name)
		}
	}
	return nil
}

func (c *Config) write(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
