package runner

import (
	"fmt"
	"time"
)

// The engine's error taxonomy. Only EnvironmentError is raised to callers;
// the other kinds are recoverable and end up recorded on the result.

// EnvironmentError means a framework executable is missing from the
// environment. This is a broken environment, not a test outcome, so it is
// fatal and never retried.
type EnvironmentError struct {
	Tool string
	Err  error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("test framework executable %q not found: %v", e.Tool, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// TimeoutError means the run exceeded its time budget. The invocation's
// process tree has already been terminated when this error is produced.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %gs", e.Timeout.Seconds())
}

// ParseError means no known schema (JSON report or text fallback) matched the
// framework output.
type ParseError struct {
	Framework string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized %s output: %s", e.Framework, e.Reason)
}

// ProcessError means the framework process exited abnormally in a way failing
// tests do not explain. Partial output is still parsed.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("test process exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("test process exited with code %d: %s", e.ExitCode, e.Stderr)
}
