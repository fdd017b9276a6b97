package gate

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/policy"
	"github.com/reglet-dev/capgate/domain/ports"
)

var _ ports.Loader = (*Gate)(nil)

// gateConfig holds configuration for Gate construction and installation.
type gateConfig struct {
	denialHandler ports.DenialHandler
	logger        *slog.Logger
	aliases       []string
}

func defaultGateConfig() gateConfig {
	return gateConfig{
		denialHandler: &policy.SlogDenialHandler{},
		logger:        slog.Default(),
		aliases:       []string{entities.BindingLoader},
	}
}

// Option configures a Gate.
type Option func(*gateConfig)

// WithDenialHandler sets the handler notified on every denial.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *gateConfig) {
		c.denialHandler = h
	}
}

// WithLogger sets the logger used for installation events.
func WithLogger(l *slog.Logger) Option {
	return func(c *gateConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLoaderAliases replaces the list of bindings Install removes because
// they expose the original loader under another name.
func WithLoaderAliases(names ...string) Option {
	return func(c *gateConfig) {
		c.aliases = append([]string(nil), names...)
	}
}

// Gate mediates every capability load: admitted requests are delegated
// unchanged to the original loader, everything else fails with
// *errors.CapabilityDeniedError before the loader is touched.
//
// A Gate has no mutable state and is safe for concurrent use; concurrency
// discipline for delegated loads is the original loader's.
type Gate struct {
	policy   ports.LoadPolicy
	original ports.Loader
}

// New wraps original with an allow-list check. The allow-list is fixed for
// the life of the gate.
func New(original ports.Loader, allow entities.Allowlist, opts ...Option) *Gate {
	cfg := defaultGateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Gate{
		policy:   policy.NewPolicy(allow, policy.WithDenialHandler(cfg.denialHandler)),
		original: original,
	}
}

// Load checks req against the allow-list and, if admitted, returns exactly
// what the original loader returns for it.
func (g *Gate) Load(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
	if err := g.policy.Check(req); err != nil {
		return nil, err
	}
	return g.original.Load(ctx, req)
}

// Request is Load with the request spelled out.
func (g *Gate) Request(ctx context.Context, name string, rc *entities.RequestContext, subMembers []string, depth int) (*entities.Module, error) {
	return g.Load(ctx, entities.LoadRequest{
		Context:    rc,
		Name:       name,
		SubMembers: subMembers,
		Depth:      depth,
	})
}

// Allowlist returns the admitted roots.
func (g *Gate) Allowlist() entities.Allowlist {
	return g.policy.Allowlist()
}

// Allows reports whether an absolute name would be admitted, without
// notifying the denial handler.
func (g *Gate) Allows(name string) bool {
	return g.policy.Allowlist().Allows(name)
}
