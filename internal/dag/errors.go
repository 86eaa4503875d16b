package dag

import (
	"errors"
	"fmt"
)

// PlanParsingError is returned when an LLM completion yields no usable tasks.
// It is fatal: nothing runs when the plan cannot be parsed.
type PlanParsingError struct {
	Reason string
	Raw    string
}

func (e *PlanParsingError) Error() string {
	return fmt.Sprintf("plan parsing failed: %s", e.Reason)
}

// ToolExecutionError wraps a failed tool attempt. The retry policy classifies
// these by message substring.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ErrAttemptTimeout marks an attempt that exceeded its wall-clock deadline.
// Timeouts are treated like network-class retryable errors.
var ErrAttemptTimeout = errors.New("tool execution timed out")
