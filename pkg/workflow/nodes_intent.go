package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/mingkeli/devagent/pkg/llm"
)

// Quick-path vocabulary for todo queries; additions are covered by
// todoPrefixes in nodes_misc.go.
var queryTodoMarkers = []string{
	"查看待办", "待办列表", "我的待办", "有哪些待办",
	"list todo", "show todo",
}

// intentAnalyzer decides the turn's intent before tool selection runs.
// Common todo phrasings are recognized by rule, skipping the model entirely;
// everything else gets one LLM classification constrained to the closed
// intent enum. Intents whose nodes read tool-call arguments are left
// undecided so the tool-selection contract can extract them.
func (e *Engine) intentAnalyzer(ctx context.Context, s *State) (*Delta, error) {
	if intent, ok := quickIntent(s.Exec.UserInput); ok {
		return intentDelta(intent), nil
	}

	messages := []llm.Message{
		{Role: "system", Content: intentPrompt()},
		{Role: "user", Content: s.Exec.UserInput},
	}
	result := e.LLM.Call(ctx, messages, llm.ContextDefault, 1)

	intent := ParseIntent(cleanIntentToken(result.Content))
	if intent == IntentUnknown || intent == IntentMCPToolCall || needsArgs(intent) {
		return &Delta{}, nil
	}
	return intentDelta(intent), nil
}

// quickIntent applies the rule-based shortcuts. Query markers are checked
// before add prefixes so "查看待办" never reads as an addition.
func quickIntent(input string) (Intent, bool) {
	lowered := strings.ToLower(strings.TrimSpace(input))
	if lowered == "" {
		return IntentUnknown, false
	}
	for _, marker := range queryTodoMarkers {
		if strings.Contains(lowered, marker) {
			return ParseIntent("query_todo"), true
		}
	}
	for _, prefix := range todoPrefixes {
		if strings.Contains(lowered, prefix) {
			return ParseIntent("add_todo"), true
		}
	}
	return IntentUnknown, false
}

// intentPrompt renders the classification instruction with the enum values
// sorted, so equal engines always produce equal prompts.
func intentPrompt() string {
	values := make([]string, 0, len(validIntents))
	for intent := range validIntents {
		if intent == IntentUnknown {
			continue
		}
		values = append(values, string(intent))
	}
	sort.Strings(values)

	var b strings.Builder
	b.WriteString("你是一个意图分类器。判断用户请求属于下列哪一类，只输出类别名称本身，" +
		"不要输出解释。无法确定时输出 unknown。\n\n类别:\n")
	for _, v := range values {
		b.WriteString("- " + v + "\n")
	}
	return b.String()
}

// cleanIntentToken reduces chatty model output to the first bare token.
func cleanIntentToken(content string) string {
	token := strings.TrimSpace(content)
	token = strings.Trim(token, "`\"' ")
	if idx := strings.IndexAny(token, " \t\n"); idx >= 0 {
		token = token[:idx]
	}
	return strings.ToLower(token)
}
