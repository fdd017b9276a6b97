package ports

import "context"

// CommandRunner starts host processes on behalf of subprocess.run.
// Implementations own output bounding and environment scrubbing.
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (*CommandResult, error)
}

// CommandRequest is a single process invocation. Command is resolved by the
// runner; Args excludes it.
type CommandRequest struct {
	Command   string
	Dir       string
	Args      []string
	Env       []string
	TimeoutMs int
}

// CommandResult is what the process left behind. A non-zero ExitCode is not
// an error.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
	TimedOut   bool
	Truncated  bool
}
