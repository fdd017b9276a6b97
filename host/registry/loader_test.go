package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(context.Context, []byte) ([]byte, error) { return []byte(`{}`), nil }

func testCatalog(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("math", func(context.Context) (*entities.Module, error) {
		return entities.NewModule("math", map[string]entities.Member{"sqrt": echo, "floor": echo}), nil
	}))
	require.NoError(t, r.Register("numpy", emptyFactory("numpy")))
	require.NoError(t, r.Register("numpy.linalg", func(context.Context) (*entities.Module, error) {
		return entities.NewModule("numpy.linalg", map[string]entities.Member{"norm": echo}), nil
	}))
	require.NoError(t, r.Register("net.dns", func(context.Context) (*entities.Module, error) {
		return entities.NewModule("net.dns", map[string]entities.Member{"lookup": echo}), nil
	}))
	require.NoError(t, r.Register("broken", func(context.Context) (*entities.Module, error) {
		return nil, errors.New("missing shared library")
	}))
	return r
}

func TestLoader_AbsoluteBindsRoot(t *testing.T) {
	l := NewLoader(testCatalog(t))
	rc := entities.NewRequestContext("test")

	mod, err := l.Load(context.Background(), entities.NewLoadRequest("numpy.linalg", rc))
	require.NoError(t, err)
	assert.Equal(t, "numpy.linalg", mod.Name)

	root, ok := rc.Locals.Module("numpy")
	require.True(t, ok)
	assert.Equal(t, "numpy", root.Name)
	assert.Equal(t, []string{"numpy"}, rc.Locals.Names())
}

func TestLoader_SubMembers(t *testing.T) {
	l := NewLoader(testCatalog(t))
	rc := entities.NewRequestContext("test")

	_, err := l.Load(context.Background(), entities.NewLoadRequest("math", rc, "sqrt", "floor"))
	require.NoError(t, err)

	_, ok := rc.Locals.Member("sqrt")
	assert.True(t, ok)
	_, ok = rc.Locals.Member("floor")
	assert.True(t, ok)
	_, ok = rc.Locals.Module("math")
	assert.False(t, ok)

	_, err = l.Load(context.Background(), entities.NewLoadRequest("numpy", rc, "linalg"))
	require.NoError(t, err)
	linalg, ok := rc.Locals.Module("linalg")
	require.True(t, ok)
	assert.Equal(t, "numpy.linalg", linalg.Name)
}

func TestLoader_MissingSubMember(t *testing.T) {
	l := NewLoader(testCatalog(t))
	rc := entities.NewRequestContext("test")

	_, err := l.Load(context.Background(), entities.NewLoadRequest("math", rc, "sqrt", "tau_fn"))

	var nf *domainerrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "math.tau_fn", nf.Name)
	assert.Zero(t, rc.Locals.Len(), "nothing is bound when a sub-member is missing")
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(testCatalog(t))
	ctx := context.Background()

	_, err := l.Load(ctx, entities.LoadRequest{Name: "scipy"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = l.Load(ctx, entities.LoadRequest{Name: "math.."})
	var inv *domainerrors.InvalidNameError
	assert.ErrorAs(t, err, &inv)

	_, err = l.Load(ctx, entities.LoadRequest{Name: "x", Depth: 1})
	assert.ErrorAs(t, err, &inv, "relative request outside a package")

	_, err = l.Load(ctx, entities.LoadRequest{Name: "broken"})
	var initErr *domainerrors.InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "broken", initErr.Name)
	assert.NotContains(t, l.Loaded(), "broken")
}

func TestLoader_Relative(t *testing.T) {
	l := NewLoader(testCatalog(t))
	rc := entities.NewRequestContext("test").InPackage("numpy.linalg")

	mod, err := l.Load(context.Background(), entities.LoadRequest{Name: "", Context: rc, Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "numpy", mod.Name)

	mod, err = l.Load(context.Background(), entities.LoadRequest{Name: "linalg", Context: rc, Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "numpy.linalg", mod.Name)
}

func TestLoader_ImplicitPackage(t *testing.T) {
	l := NewLoader(testCatalog(t))

	mod, err := l.Load(context.Background(), entities.LoadRequest{Name: "net"})
	require.NoError(t, err)
	assert.Equal(t, "net", mod.Name)
	assert.Empty(t, mod.Members())
	assert.Equal(t, packageDoc, mod.Doc)
}

func TestLoader_InstantiatesOnce(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry()
	require.NoError(t, r.Register("queue", func(context.Context) (*entities.Module, error) {
		calls.Add(1)
		return entities.NewModule("queue", nil), nil
	}))
	l := NewLoader(r)

	var wg sync.WaitGroup
	mods := make([]*entities.Module, 32)
	for i := range mods {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := l.Load(context.Background(), entities.LoadRequest{Name: "queue"})
			assert.NoError(t, err)
			mods[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, m := range mods {
		assert.Same(t, mods[0], m)
	}
}
