package testutil

import (
	"encoding/json"
	"errors"
	"testing"

	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireDenied asserts err is a capability denial for name.
func RequireDenied(t *testing.T, err error, name string) {
	t.Helper()
	require.Error(t, err)
	var denied *domainerrors.CapabilityDeniedError
	require.ErrorAs(t, err, &denied, "expected denial, got %v", err)
	assert.Equal(t, name, denied.Name)
	assert.True(t, errors.Is(err, domainerrors.ErrCapabilityDenied))
	assert.False(t, errors.Is(err, domainerrors.ErrNotFound))
}

// RequireNotFound asserts err reports that name is permitted but missing.
func RequireNotFound(t *testing.T, err error, name string) {
	t.Helper()
	require.Error(t, err)
	var nf *domainerrors.NotFoundError
	require.ErrorAs(t, err, &nf, "expected not found, got %v", err)
	assert.Equal(t, name, nf.Name)
	assert.False(t, errors.Is(err, domainerrors.ErrCapabilityDenied))
}

// AssertJSONEqual compares two JSON documents, ignoring formatting.
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
