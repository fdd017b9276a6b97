package hostfuncs

import (
	"context"
	"sync"
)

// HostContext is the context a module member runs under. It names the
// module and member being invoked and carries request-scoped values for
// middleware.
type HostContext interface {
	context.Context

	// Module returns the absolute name of the module being invoked.
	Module() string

	// Member returns the member name.
	Member() string

	// SetValue stores a request-scoped value on the existing context.
	SetValue(key, value any)

	// GetValue retrieves a value stored with SetValue.
	GetValue(key any) (value any, ok bool)
}

type hostContext struct {
	context.Context
	values map[any]any
	module string
	member string
	mu     sync.Mutex
}

// NewHostContext wraps ctx for an invocation of module.member.
func NewHostContext(ctx context.Context, module, member string) HostContext {
	return &hostContext{
		Context: ctx,
		module:  module,
		member:  member,
		values:  make(map[any]any),
	}
}

func (c *hostContext) Module() string { return c.module }

func (c *hostContext) Member() string { return c.member }

func (c *hostContext) SetValue(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// QualifiedName returns "module.member" for a HostContext, or "" otherwise.
func QualifiedName(ctx context.Context) string {
	hc, ok := ctx.(HostContext)
	if !ok {
		return ""
	}
	if hc.Module() == "" {
		return hc.Member()
	}
	return hc.Module() + "." + hc.Member()
}

// HostContextFrom returns ctx if it already is a HostContext for the same
// member, and wraps it otherwise.
func HostContextFrom(ctx context.Context, module, member string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.Module() == module && hc.Member() == member {
		return hc
	}
	return NewHostContext(ctx, module, member)
}
