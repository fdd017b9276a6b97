package hostfuncs

import (
	"context"
	"encoding/json"
)

// HostFunc is a typed module member. Returning a non-nil error produces an
// ErrorResponse for the caller instead of a response body.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler accepts a JSON request and returns a JSON response.
// Its shape matches entities.Member, so handlers are used as module members
// directly.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler wraps a typed HostFunc into a ByteHandler.
//
// Malformed requests and errors returned by fn are reported as ErrorResponse
// JSON with a nil Go error, so guests never trap on bad input:
//
//	sqrt := hostfuncs.NewJSONHandler(func(ctx context.Context, req hostfuncs.UnaryRequest) (hostfuncs.FloatResponse, error) {
//	    return hostfuncs.FloatResponse{Value: math.Sqrt(req.X)}, nil
//	})
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return NewValidationError("failed to unmarshal request: " + err.Error()).ToJSON(), nil
			}
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return FromError(err).ToJSON(), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return NewInternalError("failed to marshal response: " + err.Error()).ToJSON(), nil
		}
		return data, nil
	}
}
