package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/utils"
)

// Pre-LLM shortcut vocabulary: an open-directory verb combined with a
// directory noun is unambiguously a terminal command, no model needed.
var (
	openVerbs = []string{"打开", "open", "进入", "查看"}
	dirNouns  = []string{"目录", "文件夹", "directory", "folder"}
)

// Rescue regexes recover numeric parameters the model dropped, applied to
// the raw user input.
var portRescuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)port\s*[:：]?\s*(\d{2,5})`),
	regexp.MustCompile(`(\d{2,5})\s*端口`),
	regexp.MustCompile(`(?i)localhost\s*[:：]\s*(\d{2,5})`),
}

// toolSelection is the strict JSON contract the model must emit.
type toolSelection struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// toolCalling asks the LLM to pick one tool from the live registry and maps
// the choice onto an intent. Parse failures fall back to {tool:"none"},
// which routes to the question path.
func (e *Engine) toolCalling(ctx context.Context, s *State) (*Delta, error) {
	// The analyzer may have decided already; selection only runs for turns
	// it left open.
	if s.Exec.Intent != IntentUnknown && s.Exec.Intent != "" {
		return &Delta{}, nil
	}

	input := s.Exec.UserInput

	if isOpenDirRequest(input) {
		return intentDelta(IntentTerminalCommand), nil
	}

	messages := []llm.Message{
		{Role: "system", Content: e.toolSelectionPrompt()},
		{Role: "user", Content: input},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextDefault, 2)

	selection := parseToolSelection(result.Content)
	if selection.Tool == "" || selection.Tool == "none" {
		return intentDelta(IntentQuestion), nil
	}

	rescueNumericArgs(selection, s.Exec.OriginalInput)

	intent, known := toolIntents[selection.Tool]
	if !known {
		// Unknown tool names go to the external dispatcher with raw args.
		intent = IntentMCPToolCall
	}

	delta := intentDelta(intent)
	if intent == IntentMCPToolCall || needsArgs(intent) {
		delta.MCP = &MCPContext{ToolName: selection.Tool, Args: selection.Args}
	}
	return delta, nil
}

// toolSelectionPrompt renders the deterministic tool-documentation block.
// Tools are sorted by name so equal registries always produce equal prompts.
func (e *Engine) toolSelectionPrompt() string {
	entries := e.Registry.List()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b strings.Builder
	b.WriteString("你是一个工具选择器。根据用户请求从下列工具中选择一个，" +
		"只输出 JSON 对象 {\"tool\": 名称或\"none\", \"args\": {...}}，不要输出其他内容。\n\n可用工具:\n")
	for _, entry := range entries {
		b.WriteString(fmt.Sprintf("- %s: %s\n", entry.Name, entry.Description))
		if len(entry.Parameters) > 0 {
			if schema, err := json.Marshal(entry.Parameters); err == nil {
				b.WriteString("  参数: " + string(schema) + "\n")
			}
		}
	}
	return b.String()
}

// parseToolSelection tolerates fenced or chatty model output; anything
// unparseable becomes {tool:"none"}.
func parseToolSelection(content string) *toolSelection {
	raw, err := utils.ExtractJSON(content)
	if err != nil {
		return &toolSelection{Tool: "none"}
	}
	var sel toolSelection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return &toolSelection{Tool: "none"}
	}
	if sel.Args == nil {
		sel.Args = map[string]interface{}{}
	}
	return &sel
}

// rescueNumericArgs backfills numeric parameters the model omitted for tools
// known to need them, e.g. the port of a diagnose request.
func rescueNumericArgs(sel *toolSelection, rawInput string) {
	switch sel.Tool {
	case "diagnose_project", "stop_project":
		if _, ok := sel.Args["port"]; ok {
			return
		}
		for _, p := range portRescuePatterns {
			if m := p.FindStringSubmatch(rawInput); m != nil {
				sel.Args["port"] = m[1]
				return
			}
		}
	}
}

// needsArgs reports whether an intent's node reads MCP-style args.
func needsArgs(intent Intent) bool {
	switch intent {
	case IntentStopProject, IntentDiagnoseProject:
		return true
	}
	return false
}

func isOpenDirRequest(input string) bool {
	lowered := strings.ToLower(input)
	hasVerb := false
	for _, v := range openVerbs {
		if strings.Contains(lowered, v) {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return false
	}
	for _, n := range dirNouns {
		if strings.Contains(lowered, n) {
			return true
		}
	}
	return false
}
