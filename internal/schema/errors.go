package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExecution wraps a failure signalled by a tool handler.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrToolOutputTruncated marks a result cut to the output budget.
	// It is informational and never returned as a failure.
	ErrToolOutputTruncated = errors.New("tool output truncated")
	// ErrLLMTransient is a retryable backend failure (network, 429, 5xx).
	ErrLLMTransient = errors.New("transient LLM error")
	// ErrLLMFatal ends the turn (auth, malformed request, exhausted retries).
	ErrLLMFatal = errors.New("fatal LLM error")
	// ErrIterationLimit is reported when a turn hits the tool iteration cap.
	ErrIterationLimit = errors.New("tool iteration limit exceeded")
	// ErrMemoryWrite is returned when an atomic document replace fails.
	ErrMemoryWrite = errors.New("memory write failed")
)

// LLMError carries the HTTP detail of a backend failure. It unwraps to
// ErrLLMTransient or ErrLLMFatal.
type LLMError struct {
	Status    int // 0 for connection-level failures
	Message   string
	Transient bool
	Cause     error
}

func (e *LLMError) Error() string {
	if e.Status == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("llm request failed: %s: %v", e.Message, e.Cause)
		}
		return "llm request failed: " + e.Message
	}
	return fmt.Sprintf("llm HTTP %d: %s", e.Status, e.Message)
}

func (e *LLMError) Unwrap() []error {
	kind := ErrLLMFatal
	if e.Transient {
		kind = ErrLLMTransient
	}
	if e.Cause != nil {
		return []error{kind, e.Cause}
	}
	return []error{kind}
}
