package hostfuncs

import (
	"context"
	"errors"
	"testing"

	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoReq struct {
	Input string `json:"input"`
}

type echoResp struct {
	Output string `json:"output"`
}

func TestNewJSONHandler(t *testing.T) {
	handler := NewJSONHandler(func(_ context.Context, req echoReq) (echoResp, error) {
		switch req.Input {
		case "bad":
			return echoResp{}, argErrorf("bad input")
		case "denied":
			return echoResp{}, &domainerrors.CapabilityDeniedError{Name: "os"}
		case "boom":
			return echoResp{}, errors.New("boom")
		}
		return echoResp{Output: "echo: " + req.Input}, nil
	})

	t.Run("success", func(t *testing.T) {
		resp, err := handler(context.Background(), []byte(`{"input":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, "echo: hello", decode[echoResp](t, resp).Output)
	})

	t.Run("empty payload is a zero request", func(t *testing.T) {
		resp, err := handler(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "echo: ", decode[echoResp](t, resp).Output)
	})

	t.Run("invalid JSON returns ErrorResponse", func(t *testing.T) {
		resp, err := handler(context.Background(), []byte("{invalid-json"))
		require.NoError(t, err)
		er := requireErrorResponse(t, resp, "VALIDATION_ERROR")
		assert.Equal(t, 400, er.Code)
		assert.Contains(t, er.Message, "unmarshal")
	})

	tests := []struct {
		input string
		kind  string
		code  int
	}{
		{"bad", "VALIDATION_ERROR", 400},
		{"denied", "CAPABILITY_DENIED", 403},
		{"boom", "INTERNAL_ERROR", 500},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			resp, err := handler(context.Background(), []byte(`{"input":"`+tt.input+`"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.code, requireErrorResponse(t, resp, tt.kind).Code)
		})
	}
}
