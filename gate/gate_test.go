package gate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/policy"
	"github.com/reglet-dev/capgate/gate"
	"github.com/reglet-dev/capgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, loader *testutil.MockLoader, roots ...string) (*gate.Gate, *policy.RecordingDenialHandler) {
	t.Helper()
	rec := &policy.RecordingDenialHandler{}
	return gate.New(loader, entities.NewAllowlist(roots...), gate.WithDenialHandler(rec)), rec
}

func TestGate_AllowedDelegatesUnchanged(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, rec := newGate(t, loader, "math")

	rc := entities.NewRequestContext("test")
	req := entities.LoadRequest{Name: "math", Context: rc, SubMembers: []string{"sqrt"}}
	mathMod := entities.NewModule("math", nil)
	loader.On("Load", ctx, req).Return(mathMod, nil).Once()

	got, err := g.Load(ctx, req)
	require.NoError(t, err)
	assert.Same(t, mathMod, got)
	loader.AssertExpectations(t)
	assert.Empty(t, rec.Denials())
}

func TestGate_DottedNamePreserved(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, _ := newGate(t, loader, "numpy")

	linalg := entities.NewModule("numpy.linalg", nil)
	loader.On("Load", ctx, mock.MatchedBy(func(req entities.LoadRequest) bool {
		return req.Name == "numpy.linalg" && req.Depth == 0
	})).Return(linalg, nil).Once()

	got, err := g.Request(ctx, "numpy.linalg", entities.NewRequestContext("test"), nil, 0)
	require.NoError(t, err)
	assert.Same(t, linalg, got)
	loader.AssertExpectations(t)
}

func TestGate_DeniedNeverCallsLoader(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, rec := newGate(t, loader, "math")

	for _, name := range []string{"os", "os.path", "subprocess", "mathematics", ""} {
		t.Run(name, func(t *testing.T) {
			_, err := g.Load(ctx, entities.LoadRequest{Name: name})
			require.Error(t, err)

			var denied *domainerrors.CapabilityDeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, name, denied.Name)
			assert.False(t, errors.Is(err, domainerrors.ErrNotFound))
		})
	}

	loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	assert.Len(t, rec.Denials(), 5)
}

func TestGate_LoaderErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, rec := newGate(t, loader, "numpy")

	notFound := &domainerrors.NotFoundError{Name: "numpy"}
	loader.On("Load", ctx, mock.Anything).Return(nil, notFound).Once()

	_, err := g.Load(ctx, entities.LoadRequest{Name: "numpy"})
	assert.Same(t, notFound, err)
	assert.Empty(t, rec.Denials())
}

func TestGate_RelativeRequests(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, _ := newGate(t, loader, "net", "math")

	rc := entities.NewRequestContext("test")
	admitted := entities.LoadRequest{Name: "net", Context: rc.InPackage("net"), Depth: 1}
	loader.On("Load", ctx, admitted).Return(entities.NewModule("net.net", nil), nil).Once()

	_, err := g.Load(ctx, admitted)
	require.NoError(t, err)

	_, err = g.Load(ctx, entities.LoadRequest{Name: "math", Context: rc.InPackage("os"), Depth: 1})
	assert.ErrorIs(t, err, domainerrors.ErrCapabilityDenied)

	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestGate_Allows(t *testing.T) {
	g, rec := newGate(t, &testutil.MockLoader{}, "math")

	assert.True(t, g.Allows("math.floor"))
	assert.False(t, g.Allows("os"))
	assert.Empty(t, rec.Denials(), "dry-run checks must not report denials")
	assert.Equal(t, []string{"math"}, g.Allowlist().Roots())
}

func TestGate_ConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	loader := &testutil.MockLoader{}
	g, rec := newGate(t, loader, "math")

	mathMod := entities.NewModule("math", nil)
	loader.On("Load", ctx, mock.Anything).Return(mathMod, nil)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := g.Load(ctx, entities.LoadRequest{Name: "math"})
			assert.NoError(t, err)
			assert.Same(t, mathMod, got)
		}()
		go func() {
			defer wg.Done()
			_, err := g.Load(ctx, entities.LoadRequest{Name: "os"})
			assert.ErrorIs(t, err, domainerrors.ErrCapabilityDenied)
		}()
	}
	wg.Wait()

	loader.AssertNumberOfCalls(t, "Load", n)
	assert.Len(t, rec.Denials(), n)
}
