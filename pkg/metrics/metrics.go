package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/utils"
)

// Operation types recorded by the collector.
const (
	OpLLMCall     = "llm_call"
	OpToolCall    = "tool_call"
	OpCommandExec = "command_exec"
	OpWorkflow    = "workflow"
)

// ringSize bounds the in-memory sample buffer.
const ringSize = 1000

// exportTail is how many recent samples each export includes.
const exportTail = 100

// TokenUsage are the token totals attributed to one LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Sample is one finished measured operation.
type Sample struct {
	Timestamp      time.Time              `json:"timestamp"`
	OperationType  string                 `json:"operation_type"`
	OperationName  string                 `json:"operation_name"`
	DurationMS     float64                `json:"duration_ms"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	TokenUsage     *TokenUsage            `json:"token_usage,omitempty"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

// SessionStats are the running totals for this orchestrator session.
type SessionStats struct {
	StartTime         time.Time  `json:"start_time"`
	TotalOperations   int        `json:"total_operations"`
	Successful        int        `json:"successful"`
	Failed            int        `json:"failed"`
	TotalDurationMS   float64    `json:"total_duration_ms"`
	TotalTokens       TokenUsage `json:"total_tokens"`
	LLMCalls          int        `json:"llm_calls"`
	ToolCalls         int        `json:"tool_calls"`
	CommandExecutions int        `json:"command_executions"`
}

// SuccessRate returns the fraction of successful operations, 0 when empty.
func (s *SessionStats) SuccessRate() float64 {
	if s.TotalOperations == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.TotalOperations)
}

// AverageDurationMS returns the mean operation duration, 0 when empty.
func (s *SessionStats) AverageDurationMS() float64 {
	if s.TotalOperations == 0 {
		return 0
	}
	return s.TotalDurationMS / float64(s.TotalOperations)
}

// Collector gathers samples into a ring buffer and keeps session totals.
// A single mutex covers both.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool
	stats   SessionStats
	logger  *utils.Logger
}

// NewCollector creates an empty collector.
func NewCollector(logger *utils.Logger) *Collector {
	return &Collector{
		samples: make([]Sample, ringSize),
		stats:   SessionStats{StartTime: time.Now()},
		logger:  logger,
	}
}

// Operation is the handle returned by Measure; exactly one of Done /
// DoneErr finalizes it into a sample.
type Operation struct {
	c       *Collector
	opType  string
	opName  string
	started time.Time
	tokens  *TokenUsage
	extra   map[string]interface{}
	closed  bool
}

// Measure starts timing one operation.
func (c *Collector) Measure(opType, opName string) *Operation {
	return &Operation{c: c, opType: opType, opName: opName, started: time.Now()}
}

// AddTokens attributes token usage to the operation.
func (o *Operation) AddTokens(u TokenUsage) {
	o.tokens = &u
}

// Set attaches an additional data field to the sample.
func (o *Operation) Set(key string, value interface{}) {
	if o.extra == nil {
		o.extra = make(map[string]interface{})
	}
	o.extra[key] = value
}

// Done finalizes the operation as successful.
func (o *Operation) Done() {
	o.finish(true, "")
}

// DoneErr finalizes the operation; a nil error means success.
func (o *Operation) DoneErr(err error) {
	if err == nil {
		o.finish(true, "")
		return
	}
	o.finish(false, err.Error())
}

func (o *Operation) finish(success bool, errMsg string) {
	if o.closed {
		return
	}
	o.closed = true
	sample := Sample{
		Timestamp:      o.started,
		OperationType:  o.opType,
		OperationName:  o.opName,
		DurationMS:     float64(time.Since(o.started)) / float64(time.Millisecond),
		Success:        success,
		ErrorMessage:   errMsg,
		TokenUsage:     o.tokens,
		AdditionalData: o.extra,
	}
	o.c.record(sample)
}

func (c *Collector) record(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples[c.next] = s
	c.next = (c.next + 1) % ringSize
	if c.next == 0 {
		c.full = true
	}

	c.stats.TotalOperations++
	if s.Success {
		c.stats.Successful++
	} else {
		c.stats.Failed++
	}
	c.stats.TotalDurationMS += s.DurationMS
	if s.TokenUsage != nil {
		c.stats.TotalTokens.PromptTokens += s.TokenUsage.PromptTokens
		c.stats.TotalTokens.CompletionTokens += s.TokenUsage.CompletionTokens
		c.stats.TotalTokens.TotalTokens += s.TokenUsage.TotalTokens
	}
	switch s.OperationType {
	case OpLLMCall:
		c.stats.LLMCalls++
	case OpToolCall:
		c.stats.ToolCalls++
	case OpCommandExec:
		c.stats.CommandExecutions++
	}
}

// Recent returns up to n most recent samples, oldest first.
func (c *Collector) Recent(n int) []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recentLocked(n)
}

func (c *Collector) recentLocked(n int) []Sample {
	var ordered []Sample
	if c.full {
		ordered = append(ordered, c.samples[c.next:]...)
		ordered = append(ordered, c.samples[:c.next]...)
	} else {
		ordered = append(ordered, c.samples[:c.next]...)
	}
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Stats returns a copy of the current session totals.
func (c *Collector) Stats() SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// OperationStats aggregates success counts and durations, optionally
// filtered by operation type.
type OperationStats struct {
	Count             int     `json:"count"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	TotalDurationMS   float64 `json:"total_duration_ms"`
	AverageDurationMS float64 `json:"average_duration_ms"`
}

// GetOperationStats computes aggregate stats per operation type; an empty
// opType aggregates everything in the buffer.
func (c *Collector) GetOperationStats(opType string) OperationStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out OperationStats
	for _, s := range c.recentLocked(ringSize) {
		if opType != "" && s.OperationType != opType {
			continue
		}
		out.Count++
		if s.Success {
			out.Successful++
		} else {
			out.Failed++
		}
		out.TotalDurationMS += s.DurationMS
	}
	if out.Count > 0 {
		out.AverageDurationMS = out.TotalDurationMS / float64(out.Count)
	}
	return out
}

// TokenUsageSummary returns the session token totals.
func (c *Collector) TokenUsageSummary() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.TotalTokens
}

// FormatSummary renders a human-readable session summary.
func (c *Collector) FormatSummary() string {
	stats := c.Stats()
	return fmt.Sprintf(
		"📊 会话统计\n"+
			"  操作总数: %d (成功 %d / 失败 %d, 成功率 %.1f%%)\n"+
			"  平均耗时: %.1f ms\n"+
			"  LLM 调用: %d | 工具调用: %d | 命令执行: %d\n"+
			"  Token 用量: prompt=%d completion=%d total=%d",
		stats.TotalOperations, stats.Successful, stats.Failed, stats.SuccessRate()*100,
		stats.AverageDurationMS(),
		stats.LLMCalls, stats.ToolCalls, stats.CommandExecutions,
		stats.TotalTokens.PromptTokens, stats.TotalTokens.CompletionTokens, stats.TotalTokens.TotalTokens,
	)
}
