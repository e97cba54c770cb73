package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mingkeli/devagent/pkg/utils"
)

// callTimeout bounds one tools/call round trip.
const callTimeout = 30 * time.Second

// Dispatcher executes external tool calls, one subprocess per call.
type Dispatcher struct {
	servers map[string]ServerConfig
	logger  *utils.Logger
}

// NewDispatcher creates a dispatcher over the configured server set.
func NewDispatcher(servers map[string]ServerConfig, logger *utils.Logger) *Dispatcher {
	return &Dispatcher{servers: servers, logger: logger}
}

// CallTool spawns the server, sends one tools/call request, and demarshals
// the result. Text content items are concatenated; any other result shape is
// returned verbatim as JSON. Failures never panic: they come back as a
// CallOutcome with Success=false.
func (d *Dispatcher) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) *CallOutcome {
	cfg, ok := d.servers[serverName]
	if !ok {
		return &CallOutcome{Success: false, Error: fmt.Sprintf("未知的工具: %s", toolName)}
	}
	cfg.Name = serverName

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if args == nil {
		args = map[string]interface{}{}
	}
	msg, err := roundTrip(ctx, cfg, Message{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params: map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	})
	if err != nil {
		if d.logger != nil {
			d.logger.Warnf("tool call %s/%s failed: %v", serverName, toolName, err)
		}
		return &CallOutcome{Success: false, Error: err.Error()}
	}

	var result callResult
	if err := json.Unmarshal(msg.Result, &result); err == nil && len(result.Content) > 0 {
		var parts []string
		for _, item := range result.Content {
			if item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
		text := strings.Join(parts, "\n")
		if result.IsError {
			return &CallOutcome{Success: false, Error: text}
		}
		return &CallOutcome{Success: true, Result: text}
	}

	// No content array: return the raw result verbatim.
	return &CallOutcome{Success: true, Result: string(msg.Result)}
}
