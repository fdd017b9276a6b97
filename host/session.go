package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/policy"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/gate"
	"github.com/reglet-dev/capgate/host/registry"
	"github.com/reglet-dev/capgate/hostfuncs"
)

// ErrAlreadyGuarded is returned by a second Bootstrap.
var ErrAlreadyGuarded = errors.New("session already guarded")

// Session owns one ambient namespace and the loader behind it.
//
// A new session is Unguarded: its "load" binding is the original loader and
// "open" is present. Bootstrap revokes the configured bindings, installs the
// gate, seals the namespace and runs the pre-load list, in that order.
type Session struct {
	ns       *entities.Namespace
	original *registry.Loader
	gate     *gate.Gate
	rc       *entities.RequestContext
	catalog  ports.ModuleCatalog

	// preloaded holds the modules Bootstrap obtained through the gate.
	preloaded []*entities.Module
	// stdout and stderr are external sinks; nil means each run captures
	// into its own buffer.
	stdout io.Writer
	stderr io.Writer

	// ID identifies the session in logs.
	ID string

	config sessionConfig
	state  atomic.Int32
	mu     sync.Mutex
}

// NewSession builds an Unguarded session.
func NewSession(opts ...Option) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.denial == nil {
		cfg.denial = &policy.SlogDenialHandler{Logger: cfg.logger}
	}

	s := &Session{
		ID:      uuid.NewString(),
		config:  cfg,
		catalog: cfg.catalog,
		rc:      entities.NewRequestContext(cfg.requester),
	}
	s.config.logger = cfg.logger.With("session", s.ID)

	if s.catalog == nil {
		catalog, err := BuiltinCatalog(s.config.logger, cfg.builtinOpts...)
		if err != nil {
			return nil, err
		}
		s.catalog = catalog
	}
	s.original = registry.NewLoader(s.catalog, registry.WithLoaderLogger(s.config.logger))

	s.stdout, s.stderr = cfg.stdout, cfg.stderr

	ambient := map[string]any{
		entities.BindingPrint:  PrintFunc(printLine),
		entities.BindingLoad:   s.original,
		entities.BindingLoader: s.original,
	}
	if cfg.open != nil {
		ambient[entities.BindingOpen] = cfg.open
	}
	s.ns = entities.NewNamespace(ambient)
	if cfg.builtins != nil {
		s.ns = s.ns.Restrict(append(cfg.builtins, entities.BindingLoad)...)
	}
	return s, nil
}

// State reports whether the gate is installed.
func (s *Session) State() entities.GateState {
	return entities.GateState(s.state.Load())
}

// Guarded is State() == StateGuarded.
func (s *Session) Guarded() bool {
	return s.State() == entities.StateGuarded
}

// Gate returns the installed gate, or nil before Bootstrap.
func (s *Session) Gate() *gate.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// Namespace returns the session's ambient bindings.
func (s *Session) Namespace() *entities.Namespace {
	return s.ns
}

// Locals returns the scope programs and pre-loads bind into.
func (s *Session) Locals() *entities.Scope {
	return s.rc.Locals
}

// Preloaded returns the modules Bootstrap loaded through the gate, in
// pre-load order. Guests run by an Executor can call them without loading.
func (s *Session) Preloaded() []*entities.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.Module(nil), s.preloaded...)
}

// Catalog returns the modules the original loader can produce.
func (s *Session) Catalog() ports.ModuleCatalog {
	return s.catalog
}

// Bootstrap performs the one-way Unguarded -> Guarded transition. It must
// complete before untrusted code runs; code that ran earlier may hold
// references the gate cannot take back.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Guarded() {
		return ErrAlreadyGuarded
	}

	if err := gate.Revoke(s.ns, s.config.revoke...); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	g, err := gate.Install(s.ns, s.config.allow,
		gate.WithDenialHandler(s.config.denial),
		gate.WithLogger(s.config.logger),
		gate.WithLoaderAliases(s.config.aliases...),
	)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.gate = g
	s.state.Store(int32(entities.StateGuarded))

	s.preload(ctx, g)

	s.config.logger.InfoContext(ctx, "session guarded",
		"allowlist", s.config.allow.Roots(),
		"revoked", s.config.revoke,
		"bindings", s.ns.Names())
	return nil
}

// preload loads convenience capabilities through the gate. Missing and
// denied targets are skipped at debug level: the list is a convenience, not
// policy, so targets outside the allow-list never reach the denial handler.
func (s *Session) preload(ctx context.Context, g *gate.Gate) {
	for _, name := range s.config.preload {
		if !g.Allows(name) {
			s.config.logger.DebugContext(ctx, "preload target not allow-listed", "name", name)
			continue
		}
		m, err := g.Load(ctx, entities.NewLoadRequest(name, s.rc))
		switch {
		case err == nil:
			s.preloaded = append(s.preloaded, m)
			s.config.logger.DebugContext(ctx, "preloaded", "name", name)
		case errors.Is(err, domainerrors.ErrNotFound):
			s.config.logger.DebugContext(ctx, "preload target not found", "name", name)
		case errors.Is(err, domainerrors.ErrCapabilityDenied):
			s.config.logger.DebugContext(ctx, "preload target denied", "name", name)
		default:
			s.config.logger.WarnContext(ctx, "preload failed", "name", name, "error", err)
		}
	}
}

// Execute bootstraps the session if needed and runs p.
func (s *Session) Execute(ctx context.Context, p Program) (*entities.RunResult, error) {
	if !s.Guarded() {
		if err := s.Bootstrap(ctx); err != nil && !errors.Is(err, ErrAlreadyGuarded) {
			return nil, err
		}
	}
	return s.Run(ctx, p)
}

// Run executes p with the session's Env, bounded by the session timeout.
//
// Run does not bootstrap. Running code on an Unguarded session hands it the
// original loader and "open"; use Execute for untrusted code.
//
// Programs should honour ctx. One that does not is abandoned when the
// timeout fires and keeps running in its goroutine; whatever it prints
// afterwards lands in its own run's buffers, which nobody reads again.
// Runs may proceed concurrently.
func (s *Session) Run(ctx context.Context, p Program) (*entities.RunResult, error) {
	if p == nil {
		return nil, fmt.Errorf("run: nil program")
	}

	var outBuf, errBuf *hostfuncs.BoundedBuffer
	stdout, stderr := s.stdout, s.stderr
	if stdout == nil {
		outBuf = hostfuncs.NewBoundedBuffer(s.config.maxOutput)
		stdout = outBuf
	}
	if stderr == nil {
		errBuf = hostfuncs.NewBoundedBuffer(s.config.maxOutput)
		stderr = errBuf
	}
	if !s.Guarded() {
		s.config.logger.WarnContext(ctx, "running program on an unguarded session")
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.timeout)
	defer cancel()

	env := &Env{session: s, rc: s.rc, stdout: stdout, stderr: stderr}
	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("program panicked: %v", r)
			}
		}()
		done <- p(runCtx, env)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		if ctx.Err() != nil {
			runErr = ctx.Err()
		} else {
			runErr = &domainerrors.TimeoutError{Operation: "run", Target: s.ID, Duration: s.config.timeout}
		}
	}

	result := &entities.RunResult{Duration: time.Since(start)}
	if outBuf != nil {
		result.Stdout = outBuf.String()
		result.Truncated = outBuf.Truncated()
	}
	if errBuf != nil {
		result.Stderr = errBuf.String()
		result.Truncated = result.Truncated || errBuf.Truncated()
	}
	if runErr != nil {
		result.Error = domainerrors.ToErrorDetail(runErr)
		s.config.logger.DebugContext(ctx, "program failed", "error", runErr)
	}
	return result, nil
}
