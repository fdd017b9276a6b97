package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespace_BindLookupUnbind(t *testing.T) {
	ns := NewNamespace(map[string]any{"a": 1})

	v, ok := ns.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, ns.Bind("b", 2))
	assert.Equal(t, []string{"a", "b"}, ns.Names())

	removed, err := ns.Unbind("a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = ns.Unbind("a")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, 1, ns.Len())
}

func TestNamespace_CopiesInput(t *testing.T) {
	src := map[string]any{"a": 1}
	ns := NewNamespace(src)
	src["b"] = 2

	_, ok := ns.Lookup("b")
	assert.False(t, ok)
}

func TestNamespace_Sealed(t *testing.T) {
	ns := NewNamespace(map[string]any{"a": 1})
	ns.Seal()
	ns.Seal()

	assert.True(t, ns.Sealed())
	assert.ErrorIs(t, ns.Bind("b", 2), ErrNamespaceSealed)

	_, err := ns.Unbind("a")
	assert.ErrorIs(t, err, ErrNamespaceSealed)

	_, ok := ns.Lookup("a")
	assert.True(t, ok)
}

func TestNamespace_Restrict(t *testing.T) {
	ns := NewNamespace(map[string]any{"print": 1, "open": 2, "load": 3})
	ns.Seal()

	restricted := ns.Restrict("print", "load", "missing")

	assert.Equal(t, []string{"load", "print"}, restricted.Names())
	assert.False(t, restricted.Sealed())
	_, ok := restricted.Lookup(BindingOpen)
	assert.False(t, ok)
}

func TestNamespace_Range(t *testing.T) {
	ns := NewNamespace(map[string]any{"c": 3, "a": 1, "b": 2})

	var seen []string
	ns.Range(func(name string, _ any) bool {
		seen = append(seen, name)
		return name != "b"
	})

	assert.Equal(t, []string{"a", "b"}, seen)
}
