package resilience

import (
	"fmt"
	"time"
)

// retryStrategy asks the caller to re-execute with backoff while the retry
// budget lasts. It produces no response of its own.
type retryStrategy struct {
	maxRetries int
}

func (s *retryStrategy) Name() string { return "retry" }

func (s *retryStrategy) Apply(ectx *ErrorContext) *FallbackResult {
	if ectx.RetryCount >= s.maxRetries {
		return &FallbackResult{Success: false}
	}
	// Timeouts and network blips are worth retrying; validation errors are not.
	if ectx.Type == ErrValidation {
		return &FallbackResult{Success: false}
	}
	return &FallbackResult{
		Success:  true,
		Response: "",
		AdditionalData: map[string]interface{}{
			"should_retry": true,
			"retry_count":  ectx.RetryCount + 1,
		},
	}
}

// switchModelStrategy asks the caller to try the secondary provider once.
type switchModelStrategy struct{}

func (s *switchModelStrategy) Name() string { return "switch_model" }

func (s *switchModelStrategy) Apply(ectx *ErrorContext) *FallbackResult {
	if ectx.Type != ErrLLMCall && ectx.Type != ErrTimeout && ectx.Type != ErrNetwork {
		return &FallbackResult{Success: false}
	}
	return &FallbackResult{
		Success: true,
		AdditionalData: map[string]interface{}{
			"should_switch_model": true,
		},
	}
}

// templateStrategy returns a canned, context-appropriate response. It always
// succeeds, which is what makes the overall chain total.
type templateStrategy struct{}

func (s *templateStrategy) Name() string { return "use_template" }

func (s *templateStrategy) Apply(ectx *ErrorContext) *FallbackResult {
	return &FallbackResult{
		Success:  true,
		Response: TemplateResponse(ectx.OperationName),
		AdditionalData: map[string]interface{}{
			"fallback_used": true,
		},
	}
}

// gracefulStrategy produces the standard degraded-mode message.
type gracefulStrategy struct{}

func (s *gracefulStrategy) Name() string { return "graceful" }

func (s *gracefulStrategy) Apply(ectx *ErrorContext) *FallbackResult {
	return &FallbackResult{
		Success:  true,
		Response: DegradedResponse(ectx.Message),
		AdditionalData: map[string]interface{}{
			"fallback_used": true,
		},
	}
}

// TemplateResponse returns the canned response for an operation kind.
func TemplateResponse(operation string) string {
	switch operation {
	case OpCommandExec:
		return "⚠️ 命令执行遇到问题，请检查命令格式后重试。"
	case OpToolCall:
		return "⚠️ 工具调用暂时不可用，请稍后重试或换一种说法。"
	default:
		return "⚠️ AI 服务暂时不可用，已切换到降级模式。请稍后重试，或换一种更简单的说法。"
	}
}

// DegradedResponse returns the standard outage message with the underlying
// error and a timestamp.
func DegradedResponse(errMsg string) string {
	return fmt.Sprintf("🚨 服务暂时不可用 (%s)\n原因: %s\n请稍后重试。",
		time.Now().Format("2006-01-02 15:04:05"), errMsg)
}
