package llm

import (
	"fmt"
	"time"
)

// TemplateResponse is the canned answer for a context type, used by the
// fourth fallback step. It always produces something the user can act on.
func TemplateResponse(contextType ContextType) string {
	switch contextType {
	case ContextQuestion:
		return "抱歉，AI 服务暂时不可用，无法回答这个问题。请稍后重试，或查阅相关文档。"
	case ContextCommandGeneration:
		return "echo '⚠️ AI 服务暂时不可用，无法生成命令，请手动输入'"
	case ContextMultiStepPlanning:
		return "⚠️ AI 服务暂时不可用，无法规划多步任务。建议将任务拆分成单条命令逐一执行。"
	default:
		return "⚠️ AI 服务暂时不可用，请稍后重试。"
	}
}

// DegradedResponse is the final graceful-degradation message, carrying the
// underlying error and a timestamp.
func DegradedResponse(errMsg string) string {
	return fmt.Sprintf("🚨 AI 服务中断 (%s)\n原因: %s\n系统已进入降级模式，请稍后重试。",
		time.Now().Format("2006-01-02 15:04:05"), errMsg)
}
