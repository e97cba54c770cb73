package workflow

import "github.com/mingkeli/devagent/pkg/tools"

type builtinSpec struct {
	name        string
	description string
	parameters  map[string]interface{}
}

func strParam(name, desc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			name: map[string]interface{}{"type": "string", "description": desc},
		},
	}
}

// builtinSpecs documents the local tools exposed to the tool-selection
// model. These route to workflow nodes, so none carries an Fn.
var builtinSpecs = []builtinSpec{
	{"run_command", "执行一条终端命令，适合单步操作，如打开目录、查看文件、安装单个包", nil},
	{"multi_step", "把复杂任务拆解为多条命令或多个文件并依次执行，适合搭建项目、批量操作", nil},
	{"git_commit", "暂存全部改动并用自动生成的提交信息提交", nil},
	{"auto_commit", "自动完成 add、生成提交信息、commit 的组合操作", nil},
	{"full_git_flow", "完整 git 流程: pull、add、生成提交信息、commit、push", nil},
	{"git_pull", "拉取远端最新代码", nil},
	{"git_push", "推送本地提交到远端", nil},
	{"answer_question", "回答开发相关的问题，不执行任何命令", nil},
	{"add_todo", "记录一条待办事项", strParam("content", "待办内容")},
	{"query_todo", "查看当前的待办事项列表", nil},
	{"convert_data", "在 JSON 和 YAML 之间转换数据", nil},
	{"check_env", "诊断本机开发环境和会话健康状态", nil},
	{"start_project", "识别当前目录的项目类型并后台启动开发服务", nil},
	{"build_project", "识别项目类型并执行构建命令", nil},
	{"stop_project", "停止受管理的后台进程，可按 pid 或端口指定", strParam("port", "要停止的端口号")},
	{"diagnose_project", "诊断进程或端口的运行状态", strParam("port", "要检查的端口号")},
	{"daily_report", "根据最近的操作生成日报", nil},
	{"code_review", "对给出的代码做评审", nil},
	{"knowledge_base", "查询开发知识库", nil},
}

// RegisterBuiltinTools publishes the local tool catalog into the registry.
// External server tools are merged in later by discovery.
func RegisterBuiltinTools(reg *tools.Registry) error {
	for _, spec := range builtinSpecs {
		if err := reg.RegisterBuiltin(spec.name, spec.description, spec.parameters, nil); err != nil {
			return err
		}
	}
	return nil
}
