package ports

import (
	"context"

	"github.com/reglet-dev/capgate/domain/entities"
)

// Loader turns a load request into a capability instance.
// The unrestricted original loader and the load gate both implement it.
type Loader interface {
	Load(ctx context.Context, req entities.LoadRequest) (*entities.Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, req entities.LoadRequest) (*entities.Module, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
	return f(ctx, req)
}

// ModuleFactory instantiates a module. It runs at most once per loader
// unless it fails.
type ModuleFactory func(ctx context.Context) (*entities.Module, error)

// ModuleCatalog lists the modules a loader can instantiate, by absolute name.
type ModuleCatalog interface {
	// Factory returns the factory registered under an absolute name.
	Factory(name string) (ModuleFactory, bool)

	// Names returns all registered module names, sorted.
	Names() []string
}
