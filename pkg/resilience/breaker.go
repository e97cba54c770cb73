package resilience

import (
	"sync"
	"time"

	"github.com/mingkeli/devagent/pkg/platform"
)

// BreakerState is a circuit breaker phase.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
)

// CircuitBreaker guards one operation name. Transitions:
// CLOSED→OPEN at the failure threshold, OPEN→HALF_OPEN after the recovery
// timeout, HALF_OPEN→CLOSED on one success, HALF_OPEN→OPEN on one failure.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureCount     int
	lastFailureTime  time.Time
	state            BreakerState
	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewCircuitBreaker creates a closed breaker with the default thresholds.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: defaultFailureThreshold,
		recoveryTimeout:  defaultRecoveryTimeout,
	}
}

// Allow reports whether a call may proceed right now. An OPEN breaker whose
// recovery timeout has elapsed moves to HALF_OPEN and lets one probe through.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if platform.Now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the breaker to CLOSED.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = BreakerClosed
}

// RecordFailure counts one failure; at the threshold (or while HALF_OPEN)
// the breaker opens.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = platform.Now()
	if b.state == BreakerHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = BreakerOpen
	}
}

// State returns the current phase.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
