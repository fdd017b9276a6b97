package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/ports"
)

var _ ports.Loader = (*Loader)(nil)

// packageDoc describes package modules that exist only because they have
// catalogued children.
const packageDoc = "package"

type loaderConfig struct {
	logger *slog.Logger
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{logger: slog.Default()}
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderConfig)

// WithLoaderLogger sets the logger used for instantiation events.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(c *loaderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Loader is the unrestricted loader: it resolves any catalogued name,
// instantiates it once and binds the result into the requester's locals.
// It performs no allow-list check of its own.
type Loader struct {
	catalog ports.ModuleCatalog
	modules map[string]*entities.Module
	config  loaderConfig
	mu      sync.Mutex
}

// NewLoader creates a Loader over catalog.
func NewLoader(catalog ports.ModuleCatalog, opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{
		catalog: catalog,
		modules: make(map[string]*entities.Module),
		config:  cfg,
	}
}

// Load resolves req, instantiates the module and its parents, and binds
// the result into req.Context.Locals.
//
// With no sub-members the root package is bound under its root name and the
// leaf module is returned. With sub-members each one is bound under its own
// name; a sub-member is either a member of the module or a child module.
func (l *Loader) Load(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
	abs, err := resolve(req)
	if err != nil {
		return nil, err
	}

	mod, err := l.instantiate(ctx, abs)
	if err != nil {
		return nil, err
	}

	var locals *entities.Scope
	if req.Context != nil {
		locals = req.Context.Locals
	}

	if len(req.SubMembers) == 0 {
		if locals != nil {
			root, err := l.instantiate(ctx, entities.RootSegment(abs))
			if err != nil {
				return nil, err
			}
			locals.Bind(root.Name, root)
		}
		return mod, nil
	}

	bound := make(map[string]any, len(req.SubMembers))
	for _, sub := range req.SubMembers {
		if fn, ok := mod.Member(sub); ok {
			bound[sub] = fn
			continue
		}
		child, err := l.instantiate(ctx, abs+entities.NameSeparator+sub)
		if err != nil {
			return nil, err
		}
		bound[sub] = child
	}
	if locals != nil {
		for name, v := range bound {
			locals.Bind(name, v)
		}
	}
	return mod, nil
}

// Loaded returns the names of the modules instantiated so far.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	return names
}

func resolve(req entities.LoadRequest) (string, error) {
	abs, err := req.AbsoluteName()
	if err != nil {
		return "", &errors.InvalidNameError{Name: req.Name, Err: err}
	}
	if err := entities.ValidateName(abs); err != nil {
		return "", &errors.InvalidNameError{Name: abs, Err: err}
	}
	return abs, nil
}

// instantiate returns the cached module for name, creating it and every
// parent package first. Failed factories are not cached.
func (l *Loader) instantiate(ctx context.Context, name string) (*entities.Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	segments := strings.Split(name, entities.NameSeparator)
	var mod *entities.Module
	for i := range segments {
		prefix := strings.Join(segments[:i+1], entities.NameSeparator)
		if cached, ok := l.modules[prefix]; ok {
			mod = cached
			continue
		}

		factory, ok := l.catalog.Factory(prefix)
		if !ok {
			if !l.hasChildren(prefix) {
				return nil, &errors.NotFoundError{Name: prefix}
			}
			mod = entities.NewModule(prefix, nil)
			mod.Doc = packageDoc
			l.modules[prefix] = mod
			continue
		}

		created, err := factory(ctx)
		if err != nil {
			l.config.logger.DebugContext(ctx, "module initialization failed",
				slog.String("module", prefix),
				slog.String("error", err.Error()),
			)
			return nil, &errors.InitError{Name: prefix, Err: err}
		}
		if created == nil {
			created = entities.NewModule(prefix, nil)
		}
		created.Name = prefix
		l.modules[prefix] = created
		mod = created
		l.config.logger.DebugContext(ctx, "module instantiated", slog.String("module", prefix))
	}
	return mod, nil
}

func (l *Loader) hasChildren(prefix string) bool {
	p := prefix + entities.NameSeparator
	for _, name := range l.catalog.Names() {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
