package resilience

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"strings"
	"time"
)

// ErrorType is the closed error taxonomy of the core.
type ErrorType string

const (
	ErrLLMCall     ErrorType = "LLM_CALL_FAILED"
	ErrToolCall    ErrorType = "TOOL_CALL_FAILED"
	ErrCommandExec ErrorType = "COMMAND_EXEC_FAILED"
	ErrNetwork     ErrorType = "NETWORK"
	ErrTimeout     ErrorType = "TIMEOUT"
	ErrValidation  ErrorType = "VALIDATION"
	ErrUnknown     ErrorType = "UNKNOWN"
)

// ErrorContext carries everything the manager needs to pick a recovery.
type ErrorContext struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	NodeName      string    `json:"node_name"`
	UserInput     string    `json:"user_input"`
	OperationName string    `json:"operation_name"`
	RetryCount    int       `json:"retry_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewErrorContext builds an ErrorContext stamped with the current time.
func NewErrorContext(t ErrorType, err error, node, userInput, operation string) *ErrorContext {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ErrorContext{
		Type:          t,
		Message:       msg,
		NodeName:      node,
		UserInput:     userInput,
		OperationName: operation,
		Timestamp:     time.Now(),
	}
}

// Classify maps an arbitrary error onto the closed taxonomy. Timeouts and
// network failures are distinguished from generic call failures so retry
// policies can treat them differently.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetwork
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ErrCommandExec
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host"):
		return ErrNetwork
	}
	return ErrUnknown
}
