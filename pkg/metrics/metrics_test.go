package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureRecordsSample(t *testing.T) {
	c := NewCollector(nil)

	op := c.Measure(OpLLMCall, "chat")
	op.AddTokens(TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	op.Done()

	recent := c.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, OpLLMCall, recent[0].OperationType)
	assert.Equal(t, "chat", recent[0].OperationName)
	assert.True(t, recent[0].Success)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalOperations)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 15, stats.TotalTokens.TotalTokens)
}

func TestMeasureRecordsFailure(t *testing.T) {
	c := NewCollector(nil)
	c.Measure(OpToolCall, "weather").DoneErr(errors.New("server gone"))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0.0, stats.SuccessRate())

	recent := c.Recent(1)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Success)
	assert.Equal(t, "server gone", recent[0].ErrorMessage)
}

func TestRingBufferKeepsNewest(t *testing.T) {
	c := NewCollector(nil)
	for i := 0; i < ringSize+50; i++ {
		c.Measure(OpCommandExec, fmt.Sprintf("op-%d", i)).Done()
	}

	recent := c.Recent(ringSize + 100)
	require.Len(t, recent, ringSize)
	// Newest last, oldest ringSize back.
	assert.Equal(t, fmt.Sprintf("op-%d", ringSize+49), recent[len(recent)-1].OperationName)
	assert.Equal(t, "op-50", recent[0].OperationName)

	// Totals still count everything ever recorded.
	assert.Equal(t, ringSize+50, c.Stats().TotalOperations)
}

func TestRecentBounds(t *testing.T) {
	c := NewCollector(nil)
	c.Measure(OpLLMCall, "one").Done()
	c.Measure(OpLLMCall, "two").Done()

	assert.Len(t, c.Recent(1), 1)
	assert.Len(t, c.Recent(0), 0)
	assert.Len(t, c.Recent(99), 2)
}

func TestGetOperationStats(t *testing.T) {
	c := NewCollector(nil)
	c.Measure(OpLLMCall, "a").Done()
	c.Measure(OpLLMCall, "b").DoneErr(errors.New("x"))
	c.Measure(OpToolCall, "c").Done()

	stats := c.GetOperationStats(OpLLMCall)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.Successful)
}

func TestTokenUsageSummary(t *testing.T) {
	c := NewCollector(nil)
	op1 := c.Measure(OpLLMCall, "a")
	op1.AddTokens(TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120})
	op1.Done()
	op2 := c.Measure(OpLLMCall, "b")
	op2.AddTokens(TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60})
	op2.Done()

	usage := c.TokenUsageSummary()
	assert.Equal(t, 150, usage.PromptTokens)
	assert.Equal(t, 180, usage.TotalTokens)
}

func TestFormatSummaryMentionsCounts(t *testing.T) {
	c := NewCollector(nil)
	c.Measure(OpLLMCall, "a").Done()
	out := c.FormatSummary()
	assert.Contains(t, out, "📊")
	assert.Contains(t, out, "1")
}
