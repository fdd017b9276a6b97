package hostfuncs

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/ports"
)

var _ ports.CommandRunner = (*ExecRunner)(nil)

// ExecOption configures an ExecRunner.
type ExecOption func(*execConfig)

type execConfig struct {
	timeout   time.Duration
	maxOutput int
}

func defaultExecConfig() execConfig {
	return execConfig{
		timeout:   30 * time.Second,
		maxOutput: DefaultMaxOutputSize,
	}
}

// WithExecTimeout sets the default command timeout.
func WithExecTimeout(d time.Duration) ExecOption {
	return func(c *execConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithExecMaxOutput bounds captured stdout and stderr, each.
func WithExecMaxOutput(n int) ExecOption {
	return func(c *execConfig) {
		if n > 0 {
			c.maxOutput = n
		}
	}
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	config execConfig
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(opts ...ExecOption) *ExecRunner {
	cfg := defaultExecConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ExecRunner{config: cfg}
}

// Run executes req. A non-zero exit or a timeout is reported in the result;
// only failures to start return an error.
func (r *ExecRunner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	timeout := r.config.timeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: running the requested command is the point
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}

	stdout := NewBoundedBuffer(r.config.maxOutput)
	stderr := NewBoundedBuffer(r.config.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &ports.CommandResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
	}
	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return nil, &domainerrors.ExecError{Command: req.Command, Err: err}
}

// Environment variables a subprocess may never receive (loader injection).
var (
	blockedEnvPrefixes = []string{"LD_", "DYLD_"}
	blockedEnv         = []string{"IFS", "LOCPATH", "BASH_ENV", "ENV"}

	// gatedEnv variables pass only when the requester holds env:<NAME>.
	gatedEnv = []string{
		"PATH", "HOME", "CDPATH", "PS4",
		"PYTHONPATH", "PYTHONSTARTUP", "PYTHONHOME",
		"NODE_OPTIONS", "NODE_PATH", "RUBYLIB", "PERL5LIB", "LUA_PATH", "LUA_CPATH",
	}
)

// CapabilityGetter reports whether requester holds a named sub-capability,
// e.g. "env:PATH" or "shell".
type CapabilityGetter func(requester, capability string) bool

// IsAlwaysBlockedEnv reports whether an upper-cased key can never be passed.
func IsAlwaysBlockedEnv(upperKey string) bool {
	for _, prefix := range blockedEnvPrefixes {
		if strings.HasPrefix(upperKey, prefix) {
			return true
		}
	}
	return slices.Contains(blockedEnv, upperKey)
}

// SanitizeEnv drops malformed entries, always-blocked variables, and gated
// variables the requester holds no env:<NAME> capability for.
func SanitizeEnv(ctx context.Context, env []string, requester string, allowed CapabilityGetter) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			slog.WarnContext(ctx, "malformed environment variable dropped", "requester", requester)
			continue
		}
		upper := strings.ToUpper(key)
		if IsAlwaysBlockedEnv(upper) {
			slog.WarnContext(ctx, "blocked environment variable", "env_var", key, "requester", requester)
			continue
		}
		if slices.Contains(gatedEnv, upper) && (allowed == nil || !allowed(requester, "env:"+upper)) {
			slog.WarnContext(ctx, "environment variable requires capability",
				"env_var", key, "requester", requester, "capability", "env:"+upper)
			continue
		}
		out = append(out, kv)
	}
	return out
}

var (
	shells = []string{"sh", "bash", "dash", "zsh", "ksh", "csh", "tcsh", "fish"}

	// evalFlags lists, per interpreter, the flags that run inline code.
	evalFlags = map[string][]string{
		"python": {"-c"}, "python3": {"-c"}, "python2": {"-c"},
		"perl": {"-e", "-E"}, "ruby": {"-e"}, "node": {"-e", "--eval", "-p"},
		"php": {"-r"}, "lua": {"-e"}, "tclsh": {"-c"}, "osascript": {"-e"},
	}

	awks = []string{"awk", "gawk", "mawk", "nawk"}
)

// interpreterBase strips directories and version suffixes: /usr/bin/python3.12 -> python3.
func interpreterBase(command string) string {
	base := command[strings.LastIndex(command, "/")+1:]
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// IsDangerousExecution reports shell invocations with arguments, inline
// interpreter code, and awk programs with BEGIN/END blocks.
func IsDangerousExecution(command string, args []string) bool {
	base := interpreterBase(command)
	if slices.Contains(shells, base) && len(args) > 0 {
		return true
	}
	if slices.Contains(awks, base) {
		for _, a := range args {
			a = strings.TrimSpace(a)
			if strings.HasPrefix(a, "BEGIN") || strings.HasPrefix(a, "END") {
				return true
			}
		}
	}
	for _, a := range args {
		for _, flag := range evalFlags[base] {
			if a == flag || strings.HasPrefix(a, flag+"=") {
				return true
			}
		}
	}
	return false
}

// RunRequest executes Args[0] with the remaining arguments.
type RunRequest struct {
	Args      []string `json:"args"`
	Dir       string   `json:"cwd,omitempty"`
	Env       []string `json:"env,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// RunResponse is the completed process.
type RunResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	DurationMs int64  `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// SubprocessRunBundle returns the members of subprocess.run.
// Shell and inline-interpreter commands require the "shell" sub-capability.
func SubprocessRunBundle(runner ports.CommandRunner, allowed CapabilityGetter) HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"run": NewJSONHandler(func(ctx context.Context, req RunRequest) (RunResponse, error) {
			if len(req.Args) == 0 || req.Args[0] == "" {
				return RunResponse{}, argErrorf("args must name a command")
			}
			requester := RequesterFrom(ctx)
			command, args := req.Args[0], req.Args[1:]
			if IsDangerousExecution(command, args) && (allowed == nil || !allowed(requester, "shell")) {
				return RunResponse{}, &domainerrors.CapabilityDeniedError{
					Name:   "subprocess.run",
					Reason: "shell or inline interpreter execution",
				}
			}

			res, err := runner.Run(ctx, ports.CommandRequest{
				Command:   command,
				Args:      args,
				Dir:       req.Dir,
				Env:       SanitizeEnv(ctx, req.Env, requester, allowed),
				TimeoutMs: req.TimeoutMs,
			})
			if err != nil {
				return RunResponse{}, err
			}
			return RunResponse{
				Stdout:     res.Stdout,
				Stderr:     res.Stderr,
				ReturnCode: res.ExitCode,
				DurationMs: res.DurationMs,
				TimedOut:   res.TimedOut,
				Truncated:  res.Truncated,
			}, nil
		}),
	})
}

func subprocessRunModule(runner ports.CommandRunner, allowed CapabilityGetter) ModuleDef {
	return ModuleDef{
		Name:     "subprocess.run",
		Doc:      "run host commands",
		New:      static(SubprocessRunBundle(runner, allowed)),
		Requests: map[string]any{"run": RunRequest{}},
	}
}
