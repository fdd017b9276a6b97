// Package wasmcontext converts between Go contexts and the context wire
// format carried by guest requests.
package wasmcontext

import (
	"context"
	"time"

	"github.com/reglet-dev/capgate/wireformat"
)

type requestIDKey struct{}

// WithRequestID tags ctx with a request id that travels with guest calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextToWire captures the deadline, cancellation and request id of ctx.
func ContextToWire(ctx context.Context) wireformat.ContextWire {
	wire := wireformat.ContextWire{RequestID: RequestID(ctx)}

	if deadline, ok := ctx.Deadline(); ok {
		wire.Deadline = &deadline
		if timeout := time.Until(deadline); timeout > 0 {
			wire.TimeoutMs = timeout.Milliseconds()
		}
	}

	select {
	case <-ctx.Done():
		wire.Canceled = true
	default:
	}
	return wire
}

// WireToContext derives a context from parent that also honours the
// deadline in wire. A guest can shorten the host's deadline, never extend it.
// The returned CancelFunc must be called.
func WireToContext(parent context.Context, wire wireformat.ContextWire) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	switch {
	case wire.Deadline != nil:
		ctx, cancel = context.WithDeadline(parent, *wire.Deadline)
	case wire.TimeoutMs > 0:
		ctx, cancel = context.WithTimeout(parent, time.Duration(wire.TimeoutMs)*time.Millisecond)
	default:
		ctx, cancel = context.WithCancel(parent)
	}

	if wire.RequestID != "" {
		ctx = WithRequestID(ctx, wire.RequestID)
	}
	if wire.Canceled {
		cancel()
	}
	return ctx, cancel
}
