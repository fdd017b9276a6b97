package hostfuncs

import (
	"context"
	"fmt"
	"sort"

	"github.com/reglet-dev/capgate/domain/entities"
)

// HandlerRegistry is an immutable set of named members belonging to one
// module. Middleware is applied once at construction; lookups are lock-free.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	module   string
	names    []string
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errors     []error
}

// NewRegistry builds the members of module from opts.
// Returns the first registration error, e.g. a duplicate member name.
//
//	reg, err := hostfuncs.NewRegistry("math",
//	    hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
//	    hostfuncs.WithBundle(hostfuncs.MathBundle()),
//	)
func NewRegistry(module string, opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("module %q: %w", module, b.errors[0])
	}

	names := make([]string, 0, len(b.handlers))
	wrapped := make(map[string]ByteHandler, len(b.handlers))
	for name, handler := range b.handlers {
		names = append(names, name)
		h := handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		wrapped[name] = h
	}
	sort.Strings(names)

	return &HandlerRegistry{
		handlers: wrapped,
		module:   module,
		names:    names,
	}, nil
}

// Invoke dispatches a call to the named member.
// Unknown members produce a NOT_FOUND ErrorResponse, not a Go error.
func (r *HandlerRegistry) Invoke(ctx context.Context, member string, payload []byte) ([]byte, error) {
	handler, ok := r.handlers[member]
	if !ok {
		return NewNotFoundError(r.module + "." + member).ToJSON(), nil
	}
	return handler(HostContextFrom(ctx, r.module, member), payload)
}

// Has reports whether the member exists.
func (r *HandlerRegistry) Has(member string) bool {
	_, ok := r.handlers[member]
	return ok
}

// Names returns the sorted member names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Module exposes the registry as a loadable module. Each member invokes
// through the registry so it runs under a HostContext.
func (r *HandlerRegistry) Module(doc string) *entities.Module {
	members := make(map[string]entities.Member, len(r.names))
	for _, name := range r.names {
		name := name
		members[name] = func(ctx context.Context, payload []byte) ([]byte, error) {
			return r.Invoke(ctx, name, payload)
		}
	}
	m := entities.NewModule(r.module, members)
	m.Doc = doc
	return m
}

func (b *registryBuilder) addHandler(name string, handler ByteHandler) error {
	if name == "" {
		return fmt.Errorf("member name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("member %q has no handler", name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate member name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithByteHandler registers a raw ByteHandler.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
