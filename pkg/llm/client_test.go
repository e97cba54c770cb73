package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/resilience"
)

// stubProvider scripts Complete/Stream outcomes for fallback-chain tests.
type stubProvider struct {
	name      string
	content   string
	usage     *Usage
	err       error
	streamErr error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, messages []Message) (string, *Usage, error) {
	s.calls++
	if s.err != nil {
		return "", nil, s.err
	}
	return s.content, s.usage, nil
}

func (s *stubProvider) Stream(ctx context.Context, messages []Message) (<-chan string, func() (*Usage, error), error) {
	if s.streamErr != nil {
		return nil, nil, s.streamErr
	}
	out := make(chan string, 8)
	go func() {
		defer close(out)
		out <- s.content
	}()
	return out, func() (*Usage, error) { return s.usage, nil }, nil
}

// cancelledCtx makes the retry sleeps return immediately so fallback tests
// stay fast.
func cancelledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestCallDirectSuccess(t *testing.T) {
	primary := &stubProvider{name: "p", content: "你好", usage: &Usage{TotalTokens: 5}}
	c := NewClient(primary, nil, nil, nil, nil)

	result := c.Call(context.Background(), []Message{{Role: "user", Content: "hi"}}, ContextQuestion, 3)
	require.NotNil(t, result)
	assert.Equal(t, "你好", result.Content)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, "p", result.Provider)
	assert.Equal(t, 5, c.SessionUsage().TotalTokens)
}

func TestCallSwitchesToSecondary(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down")}
	secondary := &stubProvider{name: "s", content: "备用回答"}
	c := NewClient(primary, secondary, nil, nil, nil)

	result := c.Call(cancelledCtx(), nil, ContextQuestion, 3)
	assert.Equal(t, "备用回答", result.Content)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "switch_model", result.Strategy)
	assert.Equal(t, "s", result.Provider)
}

func TestCallFallsBackToTemplate(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down")}
	c := NewClient(primary, nil, nil, nil, nil)

	result := c.Call(cancelledCtx(), nil, ContextCommandGeneration, 3)
	require.NotNil(t, result)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "use_template", result.Strategy)
	assert.NotEmpty(t, result.Content)
}

func TestCallNeverReturnsEmptyContent(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down")}
	secondary := &stubProvider{name: "s", err: errors.New("also down")}
	c := NewClient(primary, secondary, nil, nil, nil)

	for _, ct := range []ContextType{ContextQuestion, ContextCommandGeneration, ContextMultiStepPlanning, ContextDefault} {
		result := c.Call(cancelledCtx(), nil, ct, 1)
		require.NotNil(t, result, string(ct))
		assert.NotEmpty(t, result.Content, string(ct))
		assert.True(t, result.FallbackUsed, string(ct))
	}
}

func TestStreamCallRealStream(t *testing.T) {
	primary := &stubProvider{name: "p", content: "streamed", usage: &Usage{TotalTokens: 3}}
	c := NewClient(primary, nil, nil, nil, nil)

	chunks, finish := c.StreamCall(context.Background(), nil, ContextQuestion)
	var got string
	for chunk := range chunks {
		got += chunk
	}
	result := finish()
	assert.Equal(t, "streamed", got)
	assert.Equal(t, "streamed", result.Content)
	assert.Equal(t, 3, result.Usage.TotalTokens)
}

func TestStreamCallDegradesToPseudoStream(t *testing.T) {
	primary := &stubProvider{
		name:      "p",
		content:   "这是一段比较长的中文回答内容",
		streamErr: errors.New("no sse"),
	}
	c := NewClient(primary, nil, nil, nil, nil)

	chunks, finish := c.StreamCall(context.Background(), nil, ContextQuestion)
	var got string
	for chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), pseudoChunkSize)
		got += chunk
	}
	result := finish()
	assert.Equal(t, result.Content, got)
	assert.Equal(t, "这是一段比较长的中文回答内容", got)
}

func TestCallOpensBreakerAfterConsecutiveOutages(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down")}
	res := resilience.NewManager(nil)
	c := NewClient(primary, nil, nil, res, nil)

	for i := 0; i < 5; i++ {
		result := c.Call(cancelledCtx(), nil, ContextQuestion, 1)
		require.NotNil(t, result)
		assert.NotEqual(t, "circuit_breaker", result.Strategy)
	}
	assert.Equal(t, 5, primary.calls)
	assert.Equal(t, resilience.BreakerOpen, res.Breaker(resilience.OpLLMCall).State())

	// The next call must short-circuit without touching the provider.
	result := c.Call(cancelledCtx(), nil, ContextQuestion, 1)
	assert.Equal(t, "circuit_breaker", result.Strategy)
	assert.Equal(t, BreakerResponse, result.Content)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 5, primary.calls)
}

func TestCallRecordsBreakerSuccess(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down")}
	res := resilience.NewManager(nil)
	c := NewClient(primary, nil, nil, res, nil)

	for i := 0; i < 4; i++ {
		c.Call(cancelledCtx(), nil, ContextQuestion, 1)
	}
	primary.err = nil
	primary.content = "恢复了"

	result := c.Call(context.Background(), nil, ContextQuestion, 1)
	assert.Equal(t, "恢复了", result.Content)
	assert.Equal(t, resilience.BreakerClosed, res.Breaker(resilience.OpLLMCall).State())

	// A recorded success resets the count: four more failures stay closed.
	primary.err = errors.New("down again")
	for i := 0; i < 4; i++ {
		c.Call(cancelledCtx(), nil, ContextQuestion, 1)
	}
	assert.Equal(t, resilience.BreakerClosed, res.Breaker(resilience.OpLLMCall).State())
}

func TestStreamCallShortCircuitsWhenBreakerOpen(t *testing.T) {
	primary := &stubProvider{name: "p", err: errors.New("down"), content: "不应出现"}
	res := resilience.NewManager(nil)
	c := NewClient(primary, nil, nil, res, nil)
	for i := 0; i < 5; i++ {
		res.RecordFailure(resilience.OpLLMCall)
	}

	chunks, finish := c.StreamCall(context.Background(), nil, ContextQuestion)
	var got string
	for chunk := range chunks {
		got += chunk
	}
	result := finish()
	assert.Equal(t, BreakerResponse, got)
	assert.Equal(t, "circuit_breaker", result.Strategy)
	assert.Equal(t, 0, primary.calls)
}

func TestCallExhaustedChainRecordsFailedSample(t *testing.T) {
	collector := metrics.NewCollector(nil)
	primary := &stubProvider{name: "p", err: errors.New("down")}
	c := NewClient(primary, nil, collector, nil, nil)

	result := c.Call(cancelledCtx(), nil, ContextQuestion, 1)
	require.True(t, result.FallbackUsed)

	stats := collector.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Successful)

	primary.err = nil
	primary.content = "好了"
	c.Call(context.Background(), nil, ContextQuestion, 1)
	stats = collector.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Successful)
}
