package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	h := PanicRecoveryMiddleware()(func(context.Context, []byte) ([]byte, error) {
		panic("kaboom")
	})

	resp, err := h(context.Background(), nil)
	require.NoError(t, err)
	er := requireErrorResponse(t, resp, "INTERNAL_ERROR")
	assert.Contains(t, er.Message, "kaboom")
}

func TestMaxRequestSizeMiddleware(t *testing.T) {
	h := MaxRequestSizeMiddleware(4)(echoHandler)

	resp, err := h(context.Background(), []byte("1234"))
	require.NoError(t, err)
	assert.Equal(t, "1234", string(resp))

	resp, err = h(context.Background(), []byte("12345"))
	require.NoError(t, err)
	requireErrorResponse(t, resp, "VALIDATION_ERROR")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg, err := NewRegistry("demo",
		WithMiddleware(LoggingMiddleware(logger)),
		WithByteHandler("ok", echoHandler),
		WithByteHandler("fails", func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("broken pipe")
		}),
		WithByteHandler("refuses", func(context.Context, []byte) ([]byte, error) {
			return NewDeniedError("os").ToJSON(), nil
		}),
	)
	require.NoError(t, err)

	_, _ = reg.Invoke(context.Background(), "ok", []byte(`{}`))
	_, _ = reg.Invoke(context.Background(), "fails", nil)
	_, _ = reg.Invoke(context.Background(), "refuses", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "capability call completed")
	assert.Contains(t, lines[0], "member=demo.ok")
	assert.Contains(t, lines[1], "broken pipe")
	assert.Contains(t, lines[2], "code=CAPABILITY_DENIED")
}
