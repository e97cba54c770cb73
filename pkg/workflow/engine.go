package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mingkeli/devagent/pkg/config"
	"github.com/mingkeli/devagent/pkg/llm"
	"github.com/mingkeli/devagent/pkg/mcp"
	"github.com/mingkeli/devagent/pkg/memory"
	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/monitor"
	"github.com/mingkeli/devagent/pkg/procman"
	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/runner"
	"github.com/mingkeli/devagent/pkg/tools"
	"github.com/mingkeli/devagent/pkg/utils"
)

// Deps are the collaborators injected into the engine. One instance per
// run; no process-wide singletons beyond the logger.
type Deps struct {
	Config     *config.Config
	Logger     *utils.Logger
	Metrics    *metrics.Collector
	Resilience *resilience.Manager
	Runner     *runner.Runner
	Registry   *tools.Registry
	MCP        *mcp.Manager
	Procs      *procman.Manager
	LLM        *llm.Client
	Memory     *memory.Memory
	Monitor    *monitor.Monitor
	Todos      *TodoStore

	// Out receives streamed assistant output; defaults to os.Stdout.
	Out io.Writer
}

// Engine owns the compiled workflow graph and runs one turn at a time.
type Engine struct {
	Deps
	graph *Graph
}

// TurnResult is what one user turn produced.
type TurnResult struct {
	Response string
	Intent   Intent
	Err      string
}

// NewEngine compiles the workflow graph over the injected dependencies.
func NewEngine(deps Deps) (*Engine, error) {
	e := &Engine{Deps: deps}
	if e.Todos == nil {
		e.Todos = NewTodoStore(".devagent/todos.json")
	}
	if e.Out == nil {
		e.Out = os.Stdout
	}

	graph, err := e.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow graph: %w", err)
	}
	e.graph = graph
	return e, nil
}

// buildGraph wires the node set. The graph is compiled once; routing within
// a turn is decided by the state's intent.
func (e *Engine) buildGraph() (*Graph, error) {
	b := NewBuilder()

	b.AddNode("process_file_references", e.processFileReferences)
	b.AddNode("intent_analyzer", e.intentAnalyzer)
	b.AddNode("tool_calling", e.toolCalling)
	b.AddNode("generate_command", e.generateCommand)
	b.AddNode("execute_command", e.executeCommand)
	b.AddNode("multi_step_planner", e.multiStepPlanner)
	b.AddNode("file_creator", e.fileCreator)
	b.AddNode("execute_multi_commands", e.executeMultiCommands)
	b.AddNode("mcp_tool_planner", e.mcpToolPlanner)
	b.AddNode("mcp_tool_executor", e.mcpToolExecutor)
	b.AddNode("answer_question", e.answerQuestion)
	b.AddNode("generate_commit", e.generateCommit)
	b.AddNode("git_add", e.gitAdd)
	b.AddNode("git_commit_message_gen", e.gitCommitMessageGen)
	b.AddNode("git_commit_exec", e.gitCommitExec)
	b.AddNode("git_pull", e.gitPull)
	b.AddNode("git_push", e.gitPush)
	b.AddNode("add_todo", e.addTodo)
	b.AddNode("query_todo", e.queryTodo)
	b.AddNode("data_conversion", e.dataConversion)
	b.AddNode("env_diagnostic", e.envDiagnostic)
	b.AddNode("project_start", e.projectStart)
	b.AddNode("project_build", e.projectBuild)
	b.AddNode("project_stop", e.projectStop)
	b.AddNode("project_diagnose", e.projectDiagnose)
	b.AddNode("format_response", e.formatResponse)

	b.SetEntryPoint("process_file_references")
	b.AddEdge("process_file_references", "intent_analyzer")
	b.AddEdge("intent_analyzer", "tool_calling")

	b.AddConditionalEdges("tool_calling", e.routeByIntent, []string{
		"generate_command", "multi_step_planner", "mcp_tool_planner",
		"answer_question", "generate_commit", "git_add", "git_pull", "git_push",
		"add_todo", "query_todo", "data_conversion", "env_diagnostic",
		"project_start", "project_build", "project_stop", "project_diagnose",
		"format_response",
	})

	b.AddEdge("generate_command", "execute_command")
	b.AddEdge("execute_command", "format_response")

	b.AddConditionalEdges("multi_step_planner", e.routeMultiStep, []string{
		"file_creator", "execute_multi_commands", "format_response",
	})
	b.AddEdge("file_creator", "format_response")
	b.AddEdge("execute_multi_commands", "format_response")

	b.AddEdge("mcp_tool_planner", "mcp_tool_executor")
	b.AddEdge("mcp_tool_executor", "format_response")

	b.AddEdge("answer_question", "format_response")
	b.AddEdge("generate_commit", "format_response")

	// Auto-commit chain; the full workflow prepends git_pull and appends
	// git_push. Any failed step short-circuits to the sink.
	b.AddConditionalEdges("git_pull", e.routeGitStep("git_add"), []string{
		"git_add", "format_response",
	})
	b.AddConditionalEdges("git_add", e.routeGitStep("git_commit_message_gen"), []string{
		"git_commit_message_gen", "format_response",
	})
	b.AddConditionalEdges("git_commit_message_gen", e.routeGitStep("git_commit_exec"), []string{
		"git_commit_exec", "format_response",
	})
	b.AddConditionalEdges("git_commit_exec", e.routeGitCommitDone, []string{
		"git_push", "format_response",
	})
	b.AddEdge("git_push", "format_response")

	b.AddEdge("add_todo", "format_response")
	b.AddEdge("query_todo", "format_response")
	b.AddEdge("data_conversion", "format_response")
	b.AddEdge("env_diagnostic", "format_response")
	b.AddEdge("project_start", "format_response")
	b.AddEdge("project_build", "format_response")
	b.AddEdge("project_stop", "format_response")
	b.AddEdge("project_diagnose", "format_response")

	b.AddEdge("format_response", End)

	return b.Compile()
}

// routeByIntent is the main conditional router out of the tool-calling node.
// For the same intent and state it always returns the same node name.
func (e *Engine) routeByIntent(s *State) string {
	// A node may short-circuit by producing a response early.
	if s.Response != "" {
		return "format_response"
	}
	switch s.Exec.Intent {
	case IntentTerminalCommand:
		return "generate_command"
	case IntentMultiStepCommand:
		return "multi_step_planner"
	case IntentMCPToolCall:
		return "mcp_tool_planner"
	case IntentGitCommit:
		return "generate_commit"
	case IntentAutoCommit:
		return "git_add"
	case IntentFullGitWorkflow:
		return "git_pull"
	case IntentGitPull:
		return "git_pull"
	case IntentGitPush:
		return "git_push"
	case IntentAddTodo:
		return "add_todo"
	case IntentQueryTodo:
		return "query_todo"
	case IntentDataConversion:
		return "data_conversion"
	case IntentEnvDiagnostic:
		return "env_diagnostic"
	case IntentStartProject:
		return "project_start"
	case IntentBuildProject:
		return "project_build"
	case IntentStopProject:
		return "project_stop"
	case IntentDiagnoseProject:
		return "project_diagnose"
	default:
		// Questions, reports, reviews, and anything unknown go to the
		// answering path.
		return "answer_question"
	}
}

// routeMultiStep sends planned work to file creation or batched execution.
func (e *Engine) routeMultiStep(s *State) string {
	if s.Command == nil {
		return "format_response"
	}
	if s.Command.NeedsFileCreation {
		return "file_creator"
	}
	return "execute_multi_commands"
}

// routeGitStep continues the git chain unless the previous step failed or
// the turn only asked for this single step.
func (e *Engine) routeGitStep(next string) RouterFunc {
	return func(s *State) string {
		if s.Git != nil && s.Git.Failed {
			return "format_response"
		}
		switch s.Exec.Intent {
		case IntentGitPull, IntentGitPush:
			return "format_response"
		}
		return next
	}
}

// routeGitCommitDone appends git_push only for the full workflow.
func (e *Engine) routeGitCommitDone(s *State) string {
	if s.Git != nil && s.Git.Failed {
		return "format_response"
	}
	if s.Exec.Intent == IntentFullGitWorkflow {
		return "git_push"
	}
	return "format_response"
}

// RunTurn processes one user utterance through the graph.
func (e *Engine) RunTurn(ctx context.Context, userInput string) *TurnResult {
	op := e.Metrics.Measure(metrics.OpWorkflow, "run_turn")

	state := &State{
		Exec: ExecutionContext{
			UserInput:     userInput,
			OriginalInput: userInput,
			Intent:        IntentUnknown,
		},
		ChatHistory: e.Memory.History(),
	}

	err := e.graph.Run(ctx, state, e.Resilience, e.Logger)
	if err != nil {
		op.DoneErr(err)
		return &TurnResult{
			Response: fmt.Sprintf("❌ 处理中断: %v", err),
			Intent:   state.Exec.Intent,
			Err:      err.Error(),
		}
	}
	op.Done()

	e.Memory.AddTurn(memory.Turn{
		UserInput: state.Exec.OriginalInput,
		Response:  state.Response,
		Intent:    string(state.Exec.Intent),
		Timestamp: time.Now(),
	})

	return &TurnResult{
		Response: state.Response,
		Intent:   state.Exec.Intent,
		Err:      state.Err,
	}
}
