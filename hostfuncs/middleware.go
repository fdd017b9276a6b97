package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Middleware wraps a ByteHandler with cross-cutting behavior.
// Middleware registered first wraps outermost.
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware converts panics in a member into an ErrorResponse
// instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// MaxRequestSizeMiddleware rejects payloads larger than limit bytes.
func MaxRequestSizeMiddleware(limit int) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if limit > 0 && len(payload) > limit {
				return NewValidationError(fmt.Sprintf("request of %d bytes exceeds limit of %d", len(payload), limit)).ToJSON(), nil
			}
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware logs every member invocation at debug level, and
// failures (Go errors or ErrorResponse bodies) at warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			name := QualifiedName(ctx)
			if name == "" {
				name = "unknown"
			}
			start := time.Now()
			resp, err := next(ctx, payload)
			elapsed := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "capability call failed",
					slog.String("member", name),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()))
				return resp, err
			}
			if er, isErr := ParseErrorResponse(resp); isErr {
				logger.WarnContext(ctx, "capability call returned error",
					slog.String("member", name),
					slog.Duration("elapsed", elapsed),
					slog.String("code", er.Error),
					slog.String("message", er.Message))
				return resp, nil
			}
			logger.DebugContext(ctx, "capability call completed",
				slog.String("member", name),
				slog.Duration("elapsed", elapsed))
			return resp, nil
		}
	}
}
