package proc

import (
	"fmt"
	"time"
)

// TimeoutError indicates a bounded wait exceeded its deadline: command
// execution, port readiness or worker completion.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(op string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout}
}

// ProcessError indicates a required command exited non-zero. It carries the
// captured output so callers can log it with context.
type ProcessError struct {
	Cmd      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d", e.Cmd, e.ExitCode)
}
