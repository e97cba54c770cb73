package llm

import "context"

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage are the token counts reported by a provider. Missing fields stay 0.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ContextType selects prompts, keyword sets, and fallback templates.
type ContextType string

const (
	ContextQuestion          ContextType = "question"
	ContextCommandGeneration ContextType = "command_generation"
	ContextMultiStepPlanning ContextType = "multi_step_planning"
	ContextDefault           ContextType = "default"
)

// Provider is one LLM endpoint.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Complete performs one non-streaming chat completion.
	Complete(ctx context.Context, messages []Message) (string, *Usage, error)
	// Stream starts a streaming completion. Content chunks arrive on the
	// channel until it closes; finish returns the final usage or the
	// stream error.
	Stream(ctx context.Context, messages []Message) (<-chan string, func() (*Usage, error), error)
}

// CallResult is the outcome of a client call, including which fallback
// strategy (if any) produced the content.
type CallResult struct {
	Content      string `json:"content"`
	Usage        Usage  `json:"usage"`
	FallbackUsed bool   `json:"fallback_used"`
	Strategy     string `json:"strategy,omitempty"`
	Provider     string `json:"provider,omitempty"`
}
