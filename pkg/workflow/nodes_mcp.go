package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/tools"
	"github.com/mingkeli/devagent/pkg/utils"
)

// mcpToolPlanner fills in the external tool call. When the tool-calling
// node already resolved the tool name and arguments the planner passes
// through; otherwise it asks the LLM to pick from the external tools.
func (e *Engine) mcpToolPlanner(ctx context.Context, s *State) (*Delta, error) {
	if s.MCP != nil && s.MCP.ToolName != "" && s.MCP.Args != nil {
		return &Delta{}, nil
	}

	external := externalEntries(e.Registry.List())
	if len(external) == 0 {
		return &Delta{Response: strPtr("📭 当前没有可用的外部工具。")}, nil
	}

	var catalog strings.Builder
	for _, entry := range external {
		catalog.WriteString(fmt.Sprintf("- %s: %s\n", entry.Name, entry.Description))
	}
	prompt := "从下列外部工具中选择一个完成用户请求，只输出 JSON:\n" +
		`{"tool": "name", "args": {...}}` + "\n可用工具:\n" + catalog.String()
	messages := []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: s.Exec.UserInput},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextDefault, 2)

	parsed, err := utils.ExtractJSONMap(result.Content)
	if err != nil {
		return nil, fmt.Errorf("外部工具规划失败: %w", err)
	}
	name, _ := parsed["tool"].(string)
	if name == "" {
		return nil, fmt.Errorf("外部工具规划失败: 未选择工具")
	}
	args, _ := parsed["args"].(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	mc := MCPContext{ToolName: name, Args: args}
	if s.MCP != nil && s.MCP.ToolName != "" {
		mc.ToolName = s.MCP.ToolName
	}
	return &Delta{MCP: &mc}, nil
}

func externalEntries(entries []tools.Entry) []tools.Entry {
	out := entries[:0:0]
	for _, entry := range entries {
		if entry.Kind == tools.KindExternal {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// mcpToolExecutor dispatches the planned call to its server and reports
// the outcome.
func (e *Engine) mcpToolExecutor(ctx context.Context, s *State) (*Delta, error) {
	if s.MCP == nil || s.MCP.ToolName == "" {
		return nil, fmt.Errorf("没有待调用的外部工具")
	}
	mc := *s.MCP

	op := e.Metrics.Measure(metrics.OpToolCall, mc.ToolName)
	outcome := e.MCP.CallToolByName(ctx, mc.ToolName, mc.Args)
	if outcome.Success {
		op.Done()
	} else {
		op.DoneErr(fmt.Errorf("%s", outcome.Error))
	}

	if !outcome.Success {
		return &Delta{MCP: &mc, Response: strPtr(fmt.Sprintf("❌ 工具 %s 调用失败: %s", mc.ToolName, outcome.Error))}, nil
	}
	mc.Result = outcome.Result

	display := outcome.Result
	if trimmed := strings.TrimSpace(display); json.Valid([]byte(trimmed)) {
		var buf bytes.Buffer
		if json.Indent(&buf, []byte(trimmed), "", "  ") == nil {
			display = buf.String()
		}
	}
	return &Delta{MCP: &mc, Response: strPtr(fmt.Sprintf("🔧 %s:\n%s", mc.ToolName, display))}, nil
}
