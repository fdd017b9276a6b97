package host

import (
	"fmt"
	"log/slog"

	"github.com/reglet-dev/capgate/host/registry"
	"github.com/reglet-dev/capgate/hostfuncs"
)

// DefaultMiddleware is the chain wrapped around every catalogued member:
// panics become errors, oversized requests are refused and calls are logged.
func DefaultMiddleware(logger *slog.Logger) []hostfuncs.Middleware {
	return []hostfuncs.Middleware{
		hostfuncs.PanicRecoveryMiddleware(),
		hostfuncs.MaxRequestSizeMiddleware(hostfuncs.DefaultMaxRequestSize),
		hostfuncs.LoggingMiddleware(logger),
	}
}

// NewCatalog registers defs in a fresh module registry. Request schemas are
// generated for every member that declares a request type.
func NewCatalog(defs []hostfuncs.ModuleDef, mw ...hostfuncs.Middleware) (*registry.Registry, error) {
	r := registry.NewRegistry()
	for _, d := range defs {
		err := r.Register(d.Name, d.Factory(mw...),
			registry.WithDoc(d.Doc),
			registry.WithRequestModels(d.Requests),
		)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}
	return r, nil
}

// BuiltinCatalog is NewCatalog over hostfuncs.BuiltinModules with the
// default middleware.
func BuiltinCatalog(logger *slog.Logger, opts ...hostfuncs.BuiltinOption) (*registry.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]hostfuncs.BuiltinOption{hostfuncs.WithBuiltinLogger(logger)}, opts...)
	return NewCatalog(hostfuncs.BuiltinModules(opts...), DefaultMiddleware(logger)...)
}
