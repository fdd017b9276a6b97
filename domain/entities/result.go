package entities

import "time"

// RunResult is the outcome of running untrusted code to completion.
type RunResult struct {
	// Error is set when the run failed (trap, timeout, denial left unhandled).
	Error *ErrorDetail `json:"error,omitempty"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Duration is the wall time between start and completion.
	Duration time.Duration `json:"duration"`

	// ExitCode is the guest's exit code, or 0 for in-process programs.
	ExitCode uint32 `json:"exit_code"`

	// Truncated reports that output exceeded the configured limit.
	Truncated bool `json:"truncated,omitempty"`
}

// OK reports whether the run completed without error and with exit code 0.
func (r *RunResult) OK() bool {
	return r.Error == nil && r.ExitCode == 0
}
