package workflow

import "github.com/mingkeli/devagent/pkg/memory"

// ExecutionContext is the required core of every turn's state.
type ExecutionContext struct {
	UserInput     string
	OriginalInput string
	Intent        Intent
}

// CommandOutcome is one executed step's result.
type CommandOutcome struct {
	Command  string
	Success  bool
	Output   string
	ErrorMsg string
}

// CommandContext carries command generation and execution data.
type CommandContext struct {
	Command           string
	Commands          []string
	Results           []CommandOutcome
	NeedsFileCreation bool
	PlannedFiles      []PlannedFile
}

// PlannedFile is one file the multi-step planner wants created.
type PlannedFile struct {
	Path    string
	Content string
}

// FileRef is one resolved @path reference.
type FileRef struct {
	Path    string
	Content string
}

// FileContext carries resolved file references.
type FileContext struct {
	Refs []FileRef
}

// MCPContext carries an external tool call through the graph.
type MCPContext struct {
	ToolName string
	Args     map[string]interface{}
	Result   string
}

// TodoContext carries todo operations.
type TodoContext struct {
	Content string
	Items   []string
}

// ConversionContext carries a data-conversion request.
type ConversionContext struct {
	SourceFormat string
	TargetFormat string
	Input        string
	Output       string
}

// GitContext carries the git workflow chain's progress.
type GitContext struct {
	CommitMessage string
	Steps         []string
	Failed        bool
}

// State is the per-turn workflow state. Sub-contexts are lazily allocated:
// a nil pointer means "not set", which is distinct from "set to empty".
type State struct {
	Exec        ExecutionContext
	Command     *CommandContext
	Files       *FileContext
	MCP         *MCPContext
	Todo        *TodoContext
	Conversion  *ConversionContext
	Git         *GitContext
	Response    string
	Err         string
	ChatHistory []memory.Turn
}

// Delta is a partial state update returned by a node. Nil fields leave the
// accumulated state untouched; the reducer overwrites only present fields.
type Delta struct {
	Intent     *Intent
	UserInput  *string
	Command    *CommandContext
	Files      *FileContext
	MCP        *MCPContext
	Todo       *TodoContext
	Conversion *ConversionContext
	Git        *GitContext
	Response   *string
	Err        *string
}

// merge applies a delta to the state by shallow overwrite of present fields.
func merge(s *State, d *Delta) {
	if d == nil {
		return
	}
	if d.Intent != nil {
		s.Exec.Intent = *d.Intent
	}
	if d.UserInput != nil {
		s.Exec.UserInput = *d.UserInput
	}
	if d.Command != nil {
		s.Command = d.Command
	}
	if d.Files != nil {
		s.Files = d.Files
	}
	if d.MCP != nil {
		s.MCP = d.MCP
	}
	if d.Todo != nil {
		s.Todo = d.Todo
	}
	if d.Conversion != nil {
		s.Conversion = d.Conversion
	}
	if d.Git != nil {
		s.Git = d.Git
	}
	if d.Response != nil {
		s.Response = *d.Response
	}
	if d.Err != nil {
		s.Err = *d.Err
	}
}

// Small helpers for building deltas.

func respDelta(response string) *Delta {
	return &Delta{Response: &response}
}

func intentDelta(intent Intent) *Delta {
	return &Delta{Intent: &intent}
}

func strPtr(s string) *string { return &s }
