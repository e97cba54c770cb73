package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mingkeli/devagent/pkg/platform"
	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/utils"
)

var todoPrefixes = []string{
	"添加待办", "新增待办", "记录待办", "待办:", "待办：",
	"add todo", "todo:", "remember to",
}

// addTodo persists a new todo item. The trigger phrase is stripped so only
// the task text is stored.
func (e *Engine) addTodo(ctx context.Context, s *State) (*Delta, error) {
	text := strings.TrimSpace(s.Exec.UserInput)
	lowered := strings.ToLower(text)
	for _, prefix := range todoPrefixes {
		if idx := strings.Index(lowered, prefix); idx >= 0 {
			text = strings.TrimSpace(text[idx+len(prefix):])
			break
		}
	}
	if text == "" {
		return &Delta{Response: strPtr("❓ 请告诉我要记录的待办内容。")}, nil
	}

	item, err := e.Todos.Add(text)
	if err != nil {
		return nil, fmt.Errorf("待办保存失败: %w", err)
	}
	return &Delta{
		Todo:     &TodoContext{Content: item.Text},
		Response: strPtr(fmt.Sprintf("📝 已添加待办 #%d: %s", item.ID, item.Text)),
	}, nil
}

// queryTodo lists the stored todos.
func (e *Engine) queryTodo(ctx context.Context, s *State) (*Delta, error) {
	items, err := e.Todos.List()
	if err != nil {
		return nil, fmt.Errorf("待办读取失败: %w", err)
	}
	if len(items) == 0 {
		return &Delta{Response: strPtr("📭 当前没有待办事项。")}, nil
	}

	var lines []string
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 待办事项 (%d 条):\n", len(items)))
	for _, item := range items {
		mark := "🔲"
		if item.Done {
			mark = "✅"
		}
		line := fmt.Sprintf("%s #%d %s", mark, item.ID, item.Text)
		lines = append(lines, line)
		b.WriteString("  " + line + "\n")
	}
	return &Delta{
		Todo:     &TodoContext{Items: lines},
		Response: strPtr(strings.TrimRight(b.String(), "\n")),
	}, nil
}

// dataConversion converts an inline JSON or YAML payload to the requested
// format. Both source formats parse through the YAML decoder, which accepts
// JSON as a subset.
func (e *Engine) dataConversion(ctx context.Context, s *State) (*Delta, error) {
	payload := extractPayload(s)
	if payload == "" {
		return &Delta{Response: strPtr("❓ 没有找到要转换的数据，请把数据贴在请求里或用 @文件 引用。")}, nil
	}

	target := targetFormat(s.Exec.UserInput)
	source := "yaml"
	if json.Valid([]byte(payload)) {
		source = "json"
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(payload), &value); err != nil {
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 数据解析失败: %v", err))}, nil
	}

	var out []byte
	var err error
	switch target {
	case "json":
		out, err = json.MarshalIndent(normalizeYAML(value), "", "  ")
	default:
		out, err = yaml.Marshal(value)
	}
	if err != nil {
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 数据转换失败: %v", err))}, nil
	}

	cc := &ConversionContext{
		SourceFormat: source,
		TargetFormat: target,
		Input:        payload,
		Output:       string(out),
	}
	return &Delta{
		Conversion: cc,
		Response:   strPtr(fmt.Sprintf("🔄 %s → %s:\n%s", source, target, strings.TrimRight(string(out), "\n"))),
	}, nil
}

// extractPayload prefers an inlined file reference, then a fenced block,
// then a balanced JSON value in the raw input.
func extractPayload(s *State) string {
	if s.Files != nil && len(s.Files.Refs) > 0 {
		return s.Files.Refs[0].Content
	}
	input := s.Exec.OriginalInput
	if start := strings.Index(input, "```"); start >= 0 {
		rest := input[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if raw, err := utils.ExtractJSON(input); err == nil {
		return raw
	}
	return ""
}

func targetFormat(input string) string {
	lowered := strings.ToLower(input)
	switch {
	case strings.Contains(lowered, "转json") || strings.Contains(lowered, "to json") || strings.Contains(lowered, "转 json"):
		return "json"
	case strings.Contains(lowered, "yaml") || strings.Contains(lowered, "yml"):
		return "yaml"
	case json.Valid([]byte(strings.TrimSpace(input))):
		return "yaml"
	default:
		return "json"
	}
}

// normalizeYAML rewrites map[interface{}]interface{} trees into
// map[string]interface{} so encoding/json can marshal them.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		for k, item := range v {
			v[k] = normalizeYAML(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeYAML(item)
		}
		return v
	default:
		return v
	}
}

var envProbes = []struct {
	name    string
	command string
}{
	{"git", "git --version"},
	{"node", "node --version"},
	{"npm", "npm --version"},
	{"go", "go version"},
	{"python", "python3 --version"},
}

// envDiagnostic probes common toolchain versions and appends the session
// health report.
func (e *Engine) envDiagnostic(ctx context.Context, s *State) (*Delta, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔍 环境诊断 (%s):\n", platform.OSName()))
	for _, probe := range envProbes {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		res, err := e.Runner.RunCapture(probeCtx, probe.command, runner.Options{})
		cancel()
		if err != nil || !res.Success() {
			b.WriteString(fmt.Sprintf("  ❌ %s: 未安装或不可用\n", probe.name))
			continue
		}
		version := strings.TrimSpace(strings.SplitN(res.Stdout, "\n", 2)[0])
		b.WriteString(fmt.Sprintf("  ✅ %s: %s\n", probe.name, version))
	}
	b.WriteString("\n")
	b.WriteString(e.Monitor.FormatReport())
	return &Delta{Response: strPtr(strings.TrimRight(b.String(), "\n"))}, nil
}

// projectStart launches the project in the working directory as a managed
// background process.
func (e *Engine) projectStart(ctx context.Context, s *State) (*Delta, error) {
	dir := platform.Workdir(e.Config.Workdir)
	result, err := e.Procs.StartProject(ctx, dir, 0)
	if err != nil {
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 项目启动失败: %v", err))}, nil
	}
	return &Delta{Response: strPtr(result.Message)}, nil
}

func (e *Engine) projectBuild(ctx context.Context, s *State) (*Delta, error) {
	dir := platform.Workdir(e.Config.Workdir)
	res, command, err := e.Procs.BuildProject(ctx, dir)
	if err != nil {
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 项目构建失败: %v", err))}, nil
	}
	if !res.Success() {
		tail := strings.TrimSpace(res.Stderr)
		if tail == "" {
			tail = strings.TrimSpace(res.Stdout)
		}
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 构建失败 (%s, 退出码 %d):\n%s", command, res.ExitCode, tail))}, nil
	}
	return &Delta{Response: strPtr(buildSuccessMessage(command, res.DurationMS))}, nil
}

func buildSuccessMessage(command string, durationMS float64) string {
	return fmt.Sprintf("🏗️ 构建成功: %s (耗时 %.0f ms)", command, durationMS)
}

// projectStop stops by pid or port when the tool call carried one,
// otherwise stops every managed process.
func (e *Engine) projectStop(ctx context.Context, s *State) (*Delta, error) {
	pid, port := numericArgs(s)
	var message string
	var err error
	switch {
	case pid > 0:
		message, err = e.Procs.StopByPID(pid)
	case port > 0:
		message, err = e.Procs.StopByPort(port)
	default:
		message, err = e.Procs.StopAll()
	}
	if err != nil {
		return &Delta{Response: strPtr(fmt.Sprintf("❌ 停止失败: %v", err))}, nil
	}
	return &Delta{Response: strPtr(message)}, nil
}

func (e *Engine) projectDiagnose(ctx context.Context, s *State) (*Delta, error) {
	pid, port := numericArgs(s)
	return &Delta{Response: strPtr(e.Procs.Diagnose(pid, port))}, nil
}

// numericArgs pulls pid/port out of the tool-call arguments, tolerating
// both JSON numbers and strings.
func numericArgs(s *State) (pid, port int) {
	if s.MCP == nil {
		return 0, 0
	}
	return argInt(s.MCP.Args, "pid"), argInt(s.MCP.Args, "port")
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return 0
}

// formatResponse is the terminal sink. Streamed answers were already
// printed by their node; everything else is printed here.
func (e *Engine) formatResponse(ctx context.Context, s *State) (*Delta, error) {
	response := s.Response
	if response == "" {
		response = "🤷 本次没有产生可展示的结果。"
	}
	if !streamedIntent(s.Exec.Intent) {
		fmt.Fprintln(e.Out, response)
	}
	return &Delta{Response: strPtr(response)}, nil
}

// streamedIntent mirrors the answering branch of the intent router.
func streamedIntent(intent Intent) bool {
	switch intent {
	case IntentTerminalCommand, IntentMultiStepCommand, IntentMCPToolCall,
		IntentGitCommit, IntentAutoCommit, IntentFullGitWorkflow,
		IntentGitPull, IntentGitPush, IntentAddTodo, IntentQueryTodo,
		IntentDataConversion, IntentEnvDiagnostic, IntentStartProject,
		IntentBuildProject, IntentStopProject, IntentDiagnoseProject:
		return false
	}
	return true
}
