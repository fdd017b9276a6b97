package hostfuncs

// HostFuncBundle is a set of related members registered together.
type HostFuncBundle interface {
	// Handlers returns member names mapped to their handlers.
	Handlers() map[string]ByteHandler
}

// staticBundle implements HostFuncBundle with a fixed set of handlers.
type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// NewBundle creates a bundle from a fixed handler map.
func NewBundle(handlers map[string]ByteHandler) HostFuncBundle {
	return &staticBundle{handlers: handlers}
}

// compositeBundle combines multiple bundles into one.
type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// CombineBundles merges bundles; later bundles win on name clashes.
func CombineBundles(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers all handlers from a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, handler := range bundle.Handlers() {
			if err := b.addHandler(name, handler); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithHandler registers a typed member with JSON handling.
//
//	WithHandler("upper", func(ctx context.Context, req TextRequest) (TextResponse, error) {
//	    return TextResponse{Value: strings.ToUpper(req.S)}, nil
//	})
func WithHandler[Req any, Resp any](name string, fn HostFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, NewJSONHandler(fn)); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}
