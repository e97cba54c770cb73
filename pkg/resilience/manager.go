package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/utils"
)

// FallbackResult is what a recovery strategy produced.
type FallbackResult struct {
	Success        bool                   `json:"success"`
	Response       string                 `json:"response"`
	Strategy       string                 `json:"strategy"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

// ShouldRetry reports whether the strategy asked the caller to re-execute.
func (r *FallbackResult) ShouldRetry() bool {
	if r.AdditionalData == nil {
		return false
	}
	v, _ := r.AdditionalData["should_retry"].(bool)
	return v
}

// ShouldSwitchModel reports whether the strategy asked the caller to retry
// against the secondary provider.
func (r *FallbackResult) ShouldSwitchModel() bool {
	if r.AdditionalData == nil {
		return false
	}
	v, _ := r.AdditionalData["should_switch_model"].(bool)
	return v
}

// Strategy is one recovery step in a fallback chain.
type Strategy interface {
	Name() string
	Apply(ectx *ErrorContext) *FallbackResult
}

// Operation names with configured strategy chains.
const (
	OpLLMCall     = "llm_call"
	OpToolCall    = "tool_call"
	OpCommandExec = "command_exec"
)

// Manager owns one circuit breaker per operation name plus the configured
// strategy chains. A single lock covers the breaker table.
type Manager struct {
	mu         sync.Mutex
	breakers   map[string]*CircuitBreaker
	chains     map[string][]Strategy
	recoveries map[string]int // "<operation>:<strategy>" → count
	logger     *utils.Logger
}

// NewManager creates a manager with the default strategy chains.
func NewManager(logger *utils.Logger) *Manager {
	m := &Manager{
		breakers:   make(map[string]*CircuitBreaker),
		chains:     make(map[string][]Strategy),
		recoveries: make(map[string]int),
		logger:     logger,
	}
	m.chains[OpLLMCall] = []Strategy{
		&retryStrategy{maxRetries: 3},
		&switchModelStrategy{},
		&templateStrategy{},
		&gracefulStrategy{},
	}
	m.chains[OpToolCall] = []Strategy{
		&retryStrategy{maxRetries: 2},
		&gracefulStrategy{},
	}
	m.chains[OpCommandExec] = []Strategy{
		&gracefulStrategy{},
	}
	return m
}

// Breaker returns the breaker guarding an operation, creating it on first use.
func (m *Manager) Breaker(operation string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[operation]
	if !ok {
		b = NewCircuitBreaker()
		m.breakers[operation] = b
	}
	return b
}

// Allow reports whether the breaker for an operation admits a call.
func (m *Manager) Allow(operation string) bool {
	return m.Breaker(operation).Allow()
}

// RecordSuccess resets the operation's breaker.
func (m *Manager) RecordSuccess(operation string) {
	m.Breaker(operation).RecordSuccess()
}

// RecordFailure counts one failure against the operation's breaker.
func (m *Manager) RecordFailure(operation string) {
	m.Breaker(operation).RecordFailure()
}

// BreakerStates snapshots every breaker's phase, keyed by operation.
func (m *Manager) BreakerStates() map[string]BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]BreakerState, len(m.breakers))
	for op, b := range m.breakers {
		out[op] = b.State()
	}
	return out
}

// HandleError runs the fallback chain for the failed operation. If the
// breaker is open the chain is skipped and a circuit_breaker result is
// returned immediately. The first strategy reporting success wins and is
// counted as a recovery for that (operation, strategy) pair.
func (m *Manager) HandleError(err error, ectx *ErrorContext) *FallbackResult {
	operation := ectx.OperationName
	if operation == "" {
		operation = OpLLMCall
	}

	breaker := m.Breaker(operation)
	if !breaker.Allow() {
		return &FallbackResult{
			Success:  false,
			Strategy: "circuit_breaker",
			Response: fmt.Sprintf("⛔ 操作 %s 暂时熔断，请于 %d 秒后重试", operation, int(defaultRecoveryTimeout/time.Second)),
		}
	}
	breaker.RecordFailure()

	m.mu.Lock()
	chain := m.chains[operation]
	m.mu.Unlock()
	if chain == nil {
		chain = []Strategy{&gracefulStrategy{}}
	}

	for _, strategy := range chain {
		result := strategy.Apply(ectx)
		if result != nil && result.Success {
			result.Strategy = strategy.Name()
			m.mu.Lock()
			m.recoveries[operation+":"+strategy.Name()]++
			m.mu.Unlock()
			if m.logger != nil {
				m.logger.Infof("recovered %s via %s (node=%s)", operation, strategy.Name(), ectx.NodeName)
			}
			return result
		}
	}

	// Unreachable with the default chains: graceful always succeeds.
	return &FallbackResult{
		Success:  false,
		Strategy: "none",
		Response: fmt.Sprintf("❌ 无法恢复的错误: %s", ectx.Message),
	}
}

// RecoveryStats returns a copy of the (operation, strategy) recovery counts.
func (m *Manager) RecoveryStats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.recoveries))
	for k, v := range m.recoveries {
		out[k] = v
	}
	return out
}
