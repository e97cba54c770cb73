package llm

import (
	"context"
	"sync"

	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/utils"
)

// pseudoChunkSize is how many runes each chunk of a degraded pseudo-stream
// carries.
const pseudoChunkSize = 5

// BreakerResponse is returned when the llm_call breaker is open and no
// provider is invoked.
const BreakerResponse = "⛔ AI 服务暂时熔断，请稍后再试"

// Client is the multi-provider LLM client with the five-step fallback chain:
// retry with backoff, secondary provider, simplified prompt, template,
// graceful degradation. The llm_call circuit breaker gates every call: once
// providers have failed enough consecutive turns, calls short-circuit without
// touching a provider until the breaker recovers.
type Client struct {
	primary    Provider
	secondary  Provider
	collector  *metrics.Collector
	resilience *resilience.Manager
	logger     *utils.Logger

	mu           sync.Mutex
	sessionUsage Usage
}

// NewClient creates a client. secondary may be nil, in which case the
// switch-model and simplified-prompt steps are skipped; res may be nil,
// in which case no breaker gates calls.
func NewClient(primary, secondary Provider, collector *metrics.Collector, res *resilience.Manager, logger *utils.Logger) *Client {
	return &Client{
		primary:    primary,
		secondary:  secondary,
		collector:  collector,
		resilience: res,
		logger:     logger,
	}
}

// SessionUsage returns the accumulated token totals of this session.
func (c *Client) SessionUsage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionUsage
}

func (c *Client) recordUsage(u *Usage) {
	if u == nil {
		return
	}
	c.mu.Lock()
	c.sessionUsage.Add(*u)
	c.mu.Unlock()
}

// Call performs one completion with the full fallback chain. The returned
// result is never nil and always carries content: the template and degraded
// steps are total.
func (c *Client) Call(ctx context.Context, messages []Message, contextType ContextType, maxRetries int) *CallResult {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if !c.allow() {
		return &CallResult{Content: BreakerResponse, FallbackUsed: true, Strategy: "circuit_breaker"}
	}

	op := c.measure("call")
	if op != nil {
		// No-op when the exhausted path already finalized via DoneErr.
		defer op.Done()
	}

	// Direct attempt.
	content, usage, err := c.complete(ctx, c.primary, messages, op)
	if err == nil {
		c.providerSucceeded()
		return &CallResult{Content: content, Usage: deref(usage), Provider: c.primary.Name()}
	}
	lastErr := err
	if c.logger != nil {
		c.logger.Warnf("primary llm call failed: %v", err)
	}

	// Step 1: retry with exponential backoff.
	for attempt := 0; attempt < maxRetries; attempt++ {
		if !utils.SleepWithContext(ctx, utils.BackoffDelay(attempt)) {
			break
		}
		content, usage, err = c.complete(ctx, c.primary, messages, op)
		if err == nil {
			c.providerSucceeded()
			return &CallResult{
				Content: content, Usage: deref(usage),
				FallbackUsed: true, Strategy: "retry", Provider: c.primary.Name(),
			}
		}
		lastErr = err
	}

	// Step 2: one attempt against the secondary provider.
	if c.secondary != nil {
		content, usage, err = c.complete(ctx, c.secondary, messages, op)
		if err == nil {
			c.providerSucceeded()
			return &CallResult{
				Content: content, Usage: deref(usage),
				FallbackUsed: true, Strategy: "switch_model", Provider: c.secondary.Name(),
			}
		}
		lastErr = err

		// Step 3: simplified prompt against the secondary provider.
		simplified := SimplifyMessages(messages, contextType)
		content, usage, err = c.complete(ctx, c.secondary, simplified, op)
		if err == nil {
			c.providerSucceeded()
			return &CallResult{
				Content: content, Usage: deref(usage),
				FallbackUsed: true, Strategy: "simplified_prompt", Provider: c.secondary.Name(),
			}
		}
		lastErr = err
	}

	// Every provider failed this turn: one breaker failure, one failed
	// sample. The template and degraded responses below still carry content.
	c.providerFailed()
	if op != nil {
		op.DoneErr(lastErr)
	}

	// Step 4: template response. Counts as a successful result.
	if template := TemplateResponse(contextType); template != "" {
		if c.logger != nil {
			c.logger.Warnf("llm fallback exhausted providers, using template (last error: %v)", lastErr)
		}
		return &CallResult{Content: template, FallbackUsed: true, Strategy: "use_template"}
	}

	// Step 5: graceful degradation.
	return &CallResult{
		Content:      DegradedResponse(lastErr.Error()),
		FallbackUsed: true,
		Strategy:     "graceful",
	}
}

// complete runs one provider attempt and accounts tokens on success.
func (c *Client) complete(ctx context.Context, p Provider, messages []Message, op *metrics.Operation) (string, *Usage, error) {
	content, usage, err := p.Complete(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	c.recordUsage(usage)
	if op != nil && usage != nil {
		op.AddTokens(metrics.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		})
	}
	return content, usage, nil
}

// StreamCall yields incremental content from the primary provider. When
// streaming fails to start, it degrades to a full non-streaming Call and
// re-emits the result in small chunks, preserving byte order.
func (c *Client) StreamCall(ctx context.Context, messages []Message, contextType ContextType) (<-chan string, func() *CallResult) {
	if c.allow() {
		chunks, finish, err := c.primary.Stream(ctx, messages)
		if err == nil {
			result := &CallResult{Provider: c.primary.Name()}
			out := make(chan string, 16)
			var content []byte
			done := make(chan struct{})
			go func() {
				defer close(out)
				defer close(done)
				for chunk := range chunks {
					content = append(content, chunk...)
					out <- chunk
				}
				usage, streamErr := finish()
				if streamErr == nil {
					c.recordUsage(usage)
					c.providerSucceeded()
					result.Usage = deref(usage)
				} else {
					c.providerFailed()
				}
				// Cancelled or broken streams are not charged; partial
				// content already emitted stands.
				result.Content = string(content)
			}()
			return out, func() *CallResult {
				<-done
				return result
			}
		}

		if c.logger != nil {
			c.logger.Warnf("streaming unavailable, degrading to pseudo-stream: %v", err)
		}
	}

	// Degraded path: full call, then fixed-size chunks in order.
	result := c.Call(ctx, messages, contextType, 3)
	out := make(chan string, 16)
	go func() {
		defer close(out)
		runes := []rune(result.Content)
		for i := 0; i < len(runes); i += pseudoChunkSize {
			end := i + pseudoChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case out <- string(runes[i:end]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() *CallResult { return result }
}

// allow consults the llm_call breaker; a nil manager admits everything.
func (c *Client) allow() bool {
	return c.resilience == nil || c.resilience.Allow(resilience.OpLLMCall)
}

func (c *Client) providerSucceeded() {
	if c.resilience != nil {
		c.resilience.RecordSuccess(resilience.OpLLMCall)
	}
}

func (c *Client) providerFailed() {
	if c.resilience != nil {
		c.resilience.RecordFailure(resilience.OpLLMCall)
	}
}

func (c *Client) measure(name string) *metrics.Operation {
	if c.collector == nil {
		return nil
	}
	return c.collector.Measure(metrics.OpLLMCall, name)
}

func deref(u *Usage) Usage {
	if u == nil {
		return Usage{}
	}
	return *u
}
