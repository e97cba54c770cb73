package workflow

// Intent is the closed routing enum. Every node that sets an intent must
// use one of these values.
type Intent string

const (
	IntentTerminalCommand   Intent = "terminal_command"
	IntentMultiStepCommand  Intent = "multi_step_command"
	IntentGitCommit         Intent = "git_commit"
	IntentAutoCommit        Intent = "auto_commit"
	IntentFullGitWorkflow   Intent = "full_git_workflow"
	IntentGitPull           Intent = "git_pull"
	IntentGitPush           Intent = "git_push"
	IntentMCPToolCall       Intent = "mcp_tool_call"
	IntentQuestion          Intent = "question"
	IntentAddTodo           Intent = "add_todo"
	IntentQueryTodo         Intent = "query_todo"
	IntentDataConversion    Intent = "data_conversion"
	IntentEnvDiagnostic     Intent = "environment_diagnostic"
	IntentStartProject      Intent = "start_project"
	IntentBuildProject      Intent = "build_project"
	IntentStopProject       Intent = "stop_project"
	IntentDiagnoseProject   Intent = "diagnose_project"
	IntentDailyReport       Intent = "daily_report"
	IntentCodeReview        Intent = "code_review"
	IntentKnowledgeProject  Intent = "knowledge_project"
	IntentUnknown           Intent = "unknown"
)

var validIntents = map[Intent]bool{
	IntentTerminalCommand: true, IntentMultiStepCommand: true,
	IntentGitCommit: true, IntentAutoCommit: true, IntentFullGitWorkflow: true,
	IntentGitPull: true, IntentGitPush: true,
	IntentMCPToolCall: true, IntentQuestion: true,
	IntentAddTodo: true, IntentQueryTodo: true,
	IntentDataConversion: true, IntentEnvDiagnostic: true,
	IntentStartProject: true, IntentBuildProject: true,
	IntentStopProject: true, IntentDiagnoseProject: true,
	IntentDailyReport: true, IntentCodeReview: true,
	IntentKnowledgeProject: true, IntentUnknown: true,
}

// ParseIntent maps a string onto the closed enum; anything unrecognized
// becomes unknown.
func ParseIntent(s string) Intent {
	intent := Intent(s)
	if validIntents[intent] {
		return intent
	}
	return IntentUnknown
}

// toolIntents maps selected tool names onto intents. Unknown tool names
// route to mcp_tool_call with the raw args.
var toolIntents = map[string]Intent{
	"run_command":      IntentTerminalCommand,
	"multi_step":       IntentMultiStepCommand,
	"git_commit":       IntentGitCommit,
	"auto_commit":      IntentAutoCommit,
	"full_git_flow":    IntentFullGitWorkflow,
	"git_pull":         IntentGitPull,
	"git_push":         IntentGitPush,
	"answer_question":  IntentQuestion,
	"add_todo":         IntentAddTodo,
	"query_todo":       IntentQueryTodo,
	"convert_data":     IntentDataConversion,
	"check_env":        IntentEnvDiagnostic,
	"start_project":    IntentStartProject,
	"build_project":    IntentBuildProject,
	"stop_project":     IntentStopProject,
	"diagnose_project": IntentDiagnoseProject,
	"daily_report":     IntentDailyReport,
	"code_review":      IntentCodeReview,
	"knowledge_base":   IntentKnowledgeProject,
}
