package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func invoke(t *testing.T, b HostFuncBundle, member string, req any) []byte {
	t.Helper()
	h, ok := b.Handlers()[member]
	require.True(t, ok, "member %q missing", member)

	payload, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := h(context.Background(), payload)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func requireErrorResponse(t *testing.T, data []byte, kind string) ErrorResponse {
	t.Helper()
	er, ok := ParseErrorResponse(data)
	require.True(t, ok, "expected an error response, got %s", data)
	require.Equal(t, kind, er.Error, er.Message)
	return er
}
