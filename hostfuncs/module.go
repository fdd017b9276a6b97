package hostfuncs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
)

// ModuleDef describes one catalogued capability module.
type ModuleDef struct {
	// New builds a fresh set of members. It runs once per instantiation, so
	// stateful modules (queue, random) get private state per loader.
	New func(ctx context.Context) (HostFuncBundle, error)

	// Requests maps member names to a zero value of their request type,
	// used for schema generation.
	Requests map[string]any

	// Name is the absolute dotted module name.
	Name string

	// Doc is a one-line description.
	Doc string
}

// Build instantiates the module with the given middleware applied to every
// member.
func (d ModuleDef) Build(ctx context.Context, mw ...Middleware) (*entities.Module, error) {
	bundle, err := d.New(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(d.Name, WithMiddleware(mw...), WithBundle(bundle))
	if err != nil {
		return nil, err
	}
	return reg.Module(d.Doc), nil
}

// Factory returns a ports.ModuleFactory building the module with mw.
func (d ModuleDef) Factory(mw ...Middleware) ports.ModuleFactory {
	return func(ctx context.Context) (*entities.Module, error) {
		return d.Build(ctx, mw...)
	}
}

func static(b HostFuncBundle) func(context.Context) (HostFuncBundle, error) {
	return func(context.Context) (HostFuncBundle, error) { return b, nil }
}

// builtinConfig configures the built-in catalog.
type builtinConfig struct {
	globFS         fs.FS
	dnsResolver    ports.DNSResolver
	commandRunner  ports.CommandRunner
	envGetter      CapabilityGetter
	logger         *slog.Logger
	netfilterOpts  []NetfilterOption
	maxOutputBytes int
}

func defaultBuiltinConfig() builtinConfig {
	return builtinConfig{
		globFS:         os.DirFS("."),
		dnsResolver:    NewNetResolver(),
		maxOutputBytes: DefaultMaxOutputSize,
		logger:         slog.Default(),
	}
}

// BuiltinOption configures BuiltinModules.
type BuiltinOption func(*builtinConfig)

// WithGlobFS sets the filesystem the glob module lists.
func WithGlobFS(fsys fs.FS) BuiltinOption {
	return func(c *builtinConfig) {
		if fsys != nil {
			c.globFS = fsys
		}
	}
}

// WithDNSResolver sets the resolver behind net.dns.
func WithDNSResolver(r ports.DNSResolver) BuiltinOption {
	return func(c *builtinConfig) {
		if r != nil {
			c.dnsResolver = r
		}
	}
}

// WithCommandRunner sets the runner behind subprocess.run.
// By default commands run through ExecRunner.
func WithCommandRunner(r ports.CommandRunner) BuiltinOption {
	return func(c *builtinConfig) {
		c.commandRunner = r
	}
}

// WithEnvCapabilities decides which capability-gated environment variables
// subprocess.run may pass through.
func WithEnvCapabilities(g CapabilityGetter) BuiltinOption {
	return func(c *builtinConfig) {
		c.envGetter = g
	}
}

// WithNetfilterOptions configures the address checks of net.filter.
func WithNetfilterOptions(opts ...NetfilterOption) BuiltinOption {
	return func(c *builtinConfig) {
		c.netfilterOpts = append(c.netfilterOpts, opts...)
	}
}

// WithMaxOutputBytes bounds output captured by subprocess.run and os.read_file.
func WithMaxOutputBytes(n int) BuiltinOption {
	return func(c *builtinConfig) {
		if n > 0 {
			c.maxOutputBytes = n
		}
	}
}

// WithBuiltinLogger sets the logger used by modules that log.
func WithBuiltinLogger(l *slog.Logger) BuiltinOption {
	return func(c *builtinConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// BuiltinModules returns the definitions of every built-in module.
//
// numpy, scipy and enum are allow-listed by default but not provided here;
// requests for them pass the gate and fail as not found. os, subprocess
// and net are provided but not allow-listed by default.
func BuiltinModules(opts ...BuiltinOption) []ModuleDef {
	cfg := defaultBuiltinConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	runner := cfg.commandRunner
	if runner == nil {
		runner = NewExecRunner(WithExecMaxOutput(cfg.maxOutputBytes))
	}

	return []ModuleDef{
		mathModule(),
		stringModule(),
		reModule(),
		structModule(),
		datetimeModule(),
		timeModule(),
		collectionsModule(),
		itertoolsModule(),
		functoolsModule(),
		fractionsModule(),
		randomModule(),
		globModule(cfg.globFS),
		hashlibModule(),
		queueModule(),
		osModule(cfg.maxOutputBytes),
		subprocessRunModule(runner, cfg.envGetter),
		netDNSModule(cfg.dnsResolver),
		netFilterModule(cfg.netfilterOpts...),
	}
}
