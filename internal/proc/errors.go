package proc

import (
	"fmt"
	"time"
)

// SpawnError is an OS-level launch failure: executable not found, permission
// denied. Fatal to that launch attempt.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProcessExitError reports a process that terminated before reaching the
// expected state, with its exit code and accumulated stderr as the detail.
type ProcessExitError struct {
	Code   int
	Stderr string
}

func (e *ProcessExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("process exited with code %d before becoming ready", e.Code)
	}
	return fmt.Sprintf("process exited with code %d before becoming ready: %s", e.Code, e.Stderr)
}

// TimeoutError reports that no liveness signal arrived within the configured
// bound. Only produced when a non-zero timeout is set.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no output from process within %s", e.After)
}
