package host

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/hostfuncs"
	wazeroadapter "github.com/reglet-dev/capgate/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// executorConfig holds configuration for the Executor.
type executorConfig struct {
	logger     *slog.Logger
	guestName  string
	args       []string
	timeout    time.Duration
	maxOutput  int
	maxRequest uint32
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:     slog.Default(),
		guestName:  "guest",
		timeout:    DefaultTimeout,
		maxOutput:  hostfuncs.DefaultMaxOutputSize,
		maxRequest: hostfuncs.DefaultMaxRequestSize,
	}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

// WithGuestName sets the module name guests run under. Loads and calls are
// attributed to it.
func WithGuestName(name string) ExecutorOption {
	return func(c *executorConfig) {
		if name != "" {
			c.guestName = name
		}
	}
}

// WithGuestArgs sets the guest's argv after the program name.
func WithGuestArgs(args ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.args = args
	}
}

// WithGuestTimeout bounds each guest run.
func WithGuestTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithGuestOutputLimit bounds captured guest stdout and stderr.
func WithGuestOutputLimit(n int) ExecutorOption {
	return func(c *executorConfig) {
		if n > 0 {
			c.maxOutput = n
		}
	}
}

// WithExecutorLogger sets the logger for guest log records.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Executor runs WebAssembly guests against a guarded session. Guests get
// WASI without a filesystem, so there is no file access to revoke, and the
// capgate host module whose only path to capabilities is the session's gate.
type Executor struct {
	runtime wazero.Runtime
	module  *wazeroadapter.GateModule
	session *Session
	config  executorConfig
}

// NewExecutor creates an executor for session, bootstrapping it first if it
// is still Unguarded. Guests never see the original loader.
func NewExecutor(ctx context.Context, session *Session, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if session == nil {
		return nil, fmt.Errorf("executor: session is required")
	}

	if !session.Guarded() {
		if err := session.Bootstrap(ctx); err != nil && !errors.Is(err, ErrAlreadyGuarded) {
			return nil, fmt.Errorf("executor: %w", err)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("executor: instantiate wasi: %w", err)
	}

	gm, err := wazeroadapter.RegisterGate(ctx, rt, session.Gate(),
		wazeroadapter.WithLogger(cfg.logger),
		wazeroadapter.WithMaxRequestSize(cfg.maxRequest),
		wazeroadapter.WithPreloaded(session.Preloaded()...),
	)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("executor: %w", err)
	}

	return &Executor{runtime: rt, module: gm, session: session, config: cfg}, nil
}

// Close releases resources held by the executor.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Run compiles wasm and runs its _start export to completion. Guest
// failures (non-zero exit, trap, timeout) are reported in the result; the
// error is reserved for modules that cannot be compiled.
func (e *Executor) Run(ctx context.Context, wasm []byte) (*entities.RunResult, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile guest: %w", err)
	}
	defer compiled.Close(ctx)

	name := e.config.guestName
	// Each run gets its own instance so concurrent runs neither collide in
	// the runtime nor share acquired modules.
	instance := name + "-" + uuid.NewString()
	stdout := hostfuncs.NewBoundedBuffer(e.config.maxOutput)
	stderr := hostfuncs.NewBoundedBuffer(e.config.maxOutput)

	// No WithFS/WithFSConfig: the guest has no preopened directories.
	modCfg := wazero.NewModuleConfig().
		WithName(instance).
		WithArgs(append([]string{name}, e.config.args...)...).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	runCtx, cancel := context.WithTimeout(wazeroadapter.WithGuestName(ctx, name), e.config.timeout)
	defer cancel()
	defer e.module.Forget(instance)

	start := time.Now()
	mod, err := e.runtime.InstantiateModule(runCtx, compiled, modCfg)
	if mod != nil {
		_ = mod.Close(ctx)
	}

	result := &entities.RunResult{
		Duration:  time.Since(start),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	var exitErr *sys.ExitError
	switch {
	case err == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Error = (&domainerrors.TimeoutError{Operation: "guest", Target: name, Duration: e.config.timeout}).ToErrorDetail()
		result.ExitCode = sys.ExitCodeDeadlineExceeded
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Error = domainerrors.ToErrorDetail(fmt.Errorf("guest %s: %w", name, err))
	}

	e.session.config.logger.DebugContext(ctx, "guest finished",
		"guest", name,
		"instance", instance,
		"exit_code", result.ExitCode,
		"duration", result.Duration)
	return result, nil
}
