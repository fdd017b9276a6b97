package host

import (
	"io"
	"log/slog"
	"time"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/hostfuncs"
)

// DefaultTimeout bounds a single Run.
const DefaultTimeout = 5 * time.Second

// DefaultRequester names the code a session runs when nothing else is set.
const DefaultRequester = "__main__"

// sessionConfig holds configuration for a Session.
type sessionConfig struct {
	catalog     ports.ModuleCatalog
	denial      ports.DenialHandler
	open        OpenFunc
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
	allow       entities.Allowlist
	requester   string
	preload     []string
	revoke      []string
	aliases     []string
	builtins    []string
	builtinOpts []hostfuncs.BuiltinOption
	timeout     time.Duration
	maxOutput   int
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		allow:     entities.DefaultAllowlist(),
		preload:   []string{"numpy", "scipy"},
		revoke:    []string{entities.BindingOpen},
		aliases:   []string{entities.BindingLoader},
		open:      osOpen,
		logger:    slog.Default(),
		requester: DefaultRequester,
		timeout:   DefaultTimeout,
		maxOutput: hostfuncs.DefaultMaxOutputSize,
	}
}

// Option configures a Session.
type Option func(*sessionConfig)

// WithAllowlist sets the roots the gate admits.
func WithAllowlist(allow entities.Allowlist) Option {
	return func(c *sessionConfig) {
		c.allow = allow
	}
}

// WithPreload sets the capabilities loaded through the gate during
// Bootstrap. Targets that are missing or denied are skipped.
func WithPreload(names ...string) Option {
	return func(c *sessionConfig) {
		c.preload = names
	}
}

// WithRevoke sets the ambient bindings removed before the gate is installed.
func WithRevoke(names ...string) Option {
	return func(c *sessionConfig) {
		c.revoke = names
	}
}

// WithLoaderAliases sets the bindings that expose the original loader and
// must disappear when the gate is installed.
func WithLoaderAliases(names ...string) Option {
	return func(c *sessionConfig) {
		c.aliases = names
	}
}

// WithBuiltins builds the namespace default-deny: only the listed ambient
// bindings (plus load) are copied in. Nothing has to be revoked later.
func WithBuiltins(names ...string) Option {
	return func(c *sessionConfig) {
		c.builtins = append([]string{}, names...)
	}
}

// WithCatalog replaces the built-in module catalog.
func WithCatalog(catalog ports.ModuleCatalog) Option {
	return func(c *sessionConfig) {
		c.catalog = catalog
	}
}

// WithBuiltinOptions configures the built-in catalog. Ignored with WithCatalog.
func WithBuiltinOptions(opts ...hostfuncs.BuiltinOption) Option {
	return func(c *sessionConfig) {
		c.builtinOpts = append(c.builtinOpts, opts...)
	}
}

// WithDenialHandler sets the handler notified of gate denials.
// The default logs through the session logger.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *sessionConfig) {
		c.denial = h
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOpenFunc sets the ambient "open" binding.
func WithOpenFunc(fn OpenFunc) Option {
	return func(c *sessionConfig) {
		c.open = fn
	}
}

// WithRequester names the code the session runs.
func WithRequester(name string) Option {
	return func(c *sessionConfig) {
		if name != "" {
			c.requester = name
		}
	}
}

// WithTimeout bounds each Run.
func WithTimeout(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxOutputBytes bounds captured stdout and stderr.
func WithMaxOutputBytes(n int) Option {
	return func(c *sessionConfig) {
		if n > 0 {
			c.maxOutput = n
		}
	}
}

// WithStdout sends print output to w instead of capturing it.
func WithStdout(w io.Writer) Option {
	return func(c *sessionConfig) {
		c.stdout = w
	}
}

// WithStderr sends error output to w instead of capturing it.
func WithStderr(w io.Writer) Option {
	return func(c *sessionConfig) {
		c.stderr = w
	}
}
