package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowlist_Allows(t *testing.T) {
	a := NewAllowlist("math", "numpy", " re ", "")

	assert.True(t, a.Allows("math"))
	assert.True(t, a.Allows("numpy.linalg"))
	assert.True(t, a.Allows("re"))
	assert.False(t, a.Allows("os"))
	assert.False(t, a.Allows("mathx"))
	assert.False(t, a.Allows(""))
	assert.Equal(t, 3, a.Len())
}

func TestAllowlist_EntriesReducedToRoot(t *testing.T) {
	a := NewAllowlist("numpy.linalg")

	assert.Equal(t, []string{"numpy"}, a.Roots())
	assert.True(t, a.Allows("numpy.fft"))
}

func TestAllowlist_RootsIsACopy(t *testing.T) {
	a := NewAllowlist("math")

	roots := a.Roots()
	roots[0] = "os"

	assert.False(t, a.Allows("os"))
	assert.True(t, a.Allows("math"))
}

func TestAllowlist_WithDoesNotMutate(t *testing.T) {
	a := NewAllowlist("math")
	b := a.With("os")

	assert.False(t, a.Allows("os"))
	assert.True(t, b.Allows("os"))
	assert.True(t, b.Allows("math"))
}

func TestDefaultAllowlist(t *testing.T) {
	a := DefaultAllowlist()

	for _, root := range []string{"numpy", "scipy", "math", "string", "re", "struct", "datetime",
		"collections", "enum", "fractions", "itertools", "functools", "random", "glob",
		"hashlib", "time", "queue"} {
		assert.True(t, a.Contains(root), root)
	}
	for _, root := range []string{"os", "subprocess", "net", "importlib", "sys"} {
		assert.False(t, a.Contains(root), root)
	}

	roots := DefaultRoots()
	roots[0] = "os"
	assert.False(t, DefaultAllowlist().Contains("os"))
}

func TestAllowlist_ZeroValue(t *testing.T) {
	var a Allowlist

	assert.False(t, a.Allows("math"))
	assert.Empty(t, a.Roots())
}
