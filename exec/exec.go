// Package exec runs host commands through the subprocess.run capability.
// The host denies the load unless "subprocess" is allow-listed.
package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reglet-dev/capgate/guest"
)

// CommandRequest describes a command to run on the host.
type CommandRequest struct {
	Args      []string `json:"args"`
	Dir       string   `json:"cwd,omitempty"`
	Env       []string `json:"env,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// CommandResponse is the outcome of a host command.
type CommandResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	DurationMs int64  `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// runConfig holds the configuration for command execution.
type runConfig struct {
	client  *guest.Client
	workdir string
	env     []string
	timeout time.Duration
}

func defaultRunConfig() runConfig {
	return runConfig{
		client:  guest.Default(),
		timeout: 30 * time.Second,
	}
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithClient routes the request through c instead of the host imports.
func WithClient(c *guest.Client) RunOption {
	return func(cfg *runConfig) {
		if c != nil {
			cfg.client = c
		}
	}
}

// WithWorkdir sets the working directory for the command.
func WithWorkdir(dir string) RunOption {
	return func(cfg *runConfig) {
		cfg.workdir = dir
	}
}

// WithEnv sets the command environment, KEY=VALUE entries. The host strips
// variables it considers sensitive either way.
func WithEnv(env []string) RunOption {
	return func(cfg *runConfig) {
		cfg.env = env
	}
}

// WithExecTimeout sets the execution timeout. Non-positive values are ignored.
func WithExecTimeout(d time.Duration) RunOption {
	return func(cfg *runConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

func applyRunOptions(opts ...RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Run executes a command on the host.
//
//	resp, err := exec.Run(ctx, exec.CommandRequest{Args: []string{"ls", "-la"}},
//	    exec.WithWorkdir("/tmp"), exec.WithExecTimeout(10*time.Second))
//
// A non-zero exit status is reported in ReturnCode, not as an error.
func Run(ctx context.Context, req CommandRequest, opts ...RunOption) (*CommandResponse, error) {
	if len(req.Args) == 0 {
		return nil, errors.New("exec: no command")
	}
	cfg := applyRunOptions(opts...)

	if req.Dir == "" {
		req.Dir = cfg.workdir
	}
	if req.Env == nil {
		req.Env = cfg.env
	}
	if req.TimeoutMs == 0 {
		req.TimeoutMs = int(cfg.timeout.Milliseconds())
	}

	m, err := cfg.client.Load(ctx, "subprocess.run")
	if err != nil {
		return nil, fmt.Errorf("load subprocess.run: %w", err)
	}
	var resp CommandResponse
	if err := m.Call(ctx, "run", req, &resp); err != nil {
		return nil, fmt.Errorf("run %s: %w", req.Args[0], err)
	}
	return &resp, nil
}
