package wazero

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/policy"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/gate"
	"github.com/reglet-dev/capgate/host/registry"
	"github.com/reglet-dev/capgate/hostfuncs"
	"github.com/reglet-dev/capgate/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// fakeMemory, fakeFunction and fakeGuest embed the wazero interfaces and
// override only what the adapter touches.
type fakeMemory struct {
	api.Memory
	buf []byte
}

func (m *fakeMemory) Read(offset, count uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(count)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

type fakeFunction struct {
	api.Function
	fn func(params ...uint64) []uint64
}

func (f *fakeFunction) Call(_ context.Context, params ...uint64) ([]uint64, error) {
	return f.fn(params...), nil
}

type fakeGuest struct {
	api.Module
	mem     *fakeMemory
	name    string
	next    uint32
	noAlloc bool
}

func newFakeGuest(name string) *fakeGuest {
	return &fakeGuest{name: name, mem: &fakeMemory{buf: make([]byte, 1<<16)}, next: 8}
}

func (g *fakeGuest) Name() string       { return g.name }
func (g *fakeGuest) Memory() api.Memory { return g.mem }
func (g *fakeGuest) ExportedFunction(name string) api.Function {
	if name != "allocate" || g.noAlloc {
		return nil
	}
	return &fakeFunction{fn: func(params ...uint64) []uint64 {
		ptr := g.next
		g.next += uint32(params[0]) + 8
		return []uint64{uint64(ptr)}
	}}
}

// put writes data into guest memory and returns its packed location.
func (g *fakeGuest) put(t *testing.T, v any) uint64 {
	t.Helper()
	data, ok := v.([]byte)
	if !ok {
		var err error
		data, err = json.Marshal(v)
		require.NoError(t, err)
	}
	ptr := g.next
	g.next += uint32(len(data)) + 8
	require.True(t, g.mem.Write(ptr, data))
	return wireformat.PackPtrLen(ptr, uint32(len(data)))
}

func (g *fakeGuest) get(t *testing.T, packed uint64) []byte {
	t.Helper()
	ptr, length := wireformat.UnpackPtrLen(packed)
	require.NotZero(t, ptr, "host returned a null response")
	data, ok := g.mem.Read(ptr, length)
	require.True(t, ok)
	return data
}

func sqrtMember(_ context.Context, payload []byte) ([]byte, error) {
	var req struct {
		X float64 `json:"x"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return hostfuncs.NewValidationError(err.Error()).ToJSON(), nil
	}
	if req.X == 16 {
		return []byte(`{"value":4}`), nil
	}
	return []byte(`{"value":0}`), nil
}

func testCatalog(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.NewRegistry()
	require.NoError(t, r.Register("math", func(context.Context) (*entities.Module, error) {
		return entities.NewModule("math", map[string]entities.Member{"sqrt": sqrtMember}), nil
	}))
	require.NoError(t, r.Register("os", func(context.Context) (*entities.Module, error) {
		return entities.NewModule("os", map[string]entities.Member{"getcwd": sqrtMember}), nil
	}))
	return r
}

func newTestGateModule(t *testing.T, denials *policy.RecordingDenialHandler, opts ...AdapterOption) *GateModule {
	t.Helper()
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	original := registry.NewLoader(testCatalog(t))
	g := gate.New(original, entities.NewAllowlist("math", "numpy"), gate.WithDenialHandler(denials))
	return &GateModule{loader: g, guests: make(map[string]*guestState), config: cfg}
}

func load(t *testing.T, gm *GateModule, guest *fakeGuest, req wireformat.LoadRequestWire) []byte {
	t.Helper()
	stack := []uint64{guest.put(t, req)}
	gm.handleLoad(context.Background(), guest, stack)
	return guest.get(t, stack[0])
}

func call(t *testing.T, gm *GateModule, guest *fakeGuest, req wireformat.CallRequestWire) []byte {
	t.Helper()
	stack := []uint64{guest.put(t, req)}
	gm.handleCall(context.Background(), guest, stack)
	return guest.get(t, stack[0])
}

func requireWireError(t *testing.T, data []byte, kind string) *wireformat.ErrorWire {
	t.Helper()
	e, ok := wireformat.ParseError(data)
	require.True(t, ok, "expected error body, got %s", data)
	assert.Equal(t, kind, e.Kind)
	return e
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.Equal(t, "capgate", cfg.ModuleName)
	assert.Equal(t, uint32(hostfuncs.DefaultMaxRequestSize), cfg.MaxRequestSize)
	assert.NotNil(t, cfg.Logger)
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	WithModuleName("custom")(&cfg)
	WithMaxRequestSize(2048)(&cfg)
	WithCustomHandler(CustomHandler{Name: "extra"})(&cfg)
	WithLogger(nil)(&cfg)

	assert.Equal(t, "custom", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxRequestSize)
	require.Len(t, cfg.CustomHandlers, 1)
	assert.Equal(t, "extra", cfg.CustomHandlers[0].Name)
	assert.NotNil(t, cfg.Logger)
}

func TestGateModule_LoadThenCall(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	guest := newFakeGuest("guest")

	var resp wireformat.LoadResponseWire
	require.NoError(t, json.Unmarshal(load(t, gm, guest, wireformat.LoadRequestWire{Name: "math"}), &resp))
	assert.Equal(t, "math", resp.Module)
	assert.Equal(t, []string{"sqrt"}, resp.Members)
	assert.Equal(t, []string{"math"}, resp.Bound)

	locals, ok := gm.Locals("guest")
	require.True(t, ok)
	_, bound := locals.Module("math")
	assert.True(t, bound)

	out := call(t, gm, guest, wireformat.CallRequestWire{
		Module:  "math",
		Member:  "sqrt",
		Payload: json.RawMessage(`{"x":16}`),
	})
	assert.JSONEq(t, `{"value":4}`, string(out))
}

func TestGateModule_DeniedLoad(t *testing.T) {
	denials := &policy.RecordingDenialHandler{}
	gm := newTestGateModule(t, denials)
	guest := newFakeGuest("guest")

	e := requireWireError(t, load(t, gm, guest, wireformat.LoadRequestWire{Name: "os"}), "CAPABILITY_DENIED")
	assert.True(t, e.Denied())
	assert.Equal(t, 403, e.Code)
	require.Len(t, denials.Denials(), 1)

	locals, ok := gm.Locals("guest")
	require.True(t, ok)
	assert.Zero(t, locals.Len(), "a denied load binds nothing")

	// os is catalogued, but the guest never obtained it.
	requireWireError(t, call(t, gm, guest, wireformat.CallRequestWire{Module: "os", Member: "getcwd"}), "NOT_FOUND")
}

func TestGateModule_PermittedButMissing(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	guest := newFakeGuest("guest")

	e := requireWireError(t, load(t, gm, guest, wireformat.LoadRequestWire{Name: "numpy.linalg"}), "NOT_FOUND")
	assert.True(t, e.NotFound())
}

func TestGateModule_CallIsolation(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	first := newFakeGuest("first")
	second := newFakeGuest("second")

	load(t, gm, first, wireformat.LoadRequestWire{Name: "math"})

	requireWireError(t, call(t, gm, second, wireformat.CallRequestWire{Module: "math", Member: "sqrt"}), "NOT_FOUND")

	gm.Forget("first")
	requireWireError(t, call(t, gm, first, wireformat.CallRequestWire{Module: "math", Member: "sqrt"}), "NOT_FOUND")
}

func TestGateModule_CallUnknownMember(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	guest := newFakeGuest("guest")
	load(t, gm, guest, wireformat.LoadRequestWire{Name: "math"})

	e := requireWireError(t, call(t, gm, guest, wireformat.CallRequestWire{Module: "math", Member: "cbrt"}), "NOT_FOUND")
	assert.Contains(t, e.Message, "math.cbrt")
}

func TestGateModule_BadRequests(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{}, WithMaxRequestSize(64))
	guest := newFakeGuest("guest")

	stack := []uint64{guest.put(t, []byte("{not json"))}
	gm.handleLoad(context.Background(), guest, stack)
	requireWireError(t, guest.get(t, stack[0]), "VALIDATION_ERROR")

	stack = []uint64{guest.put(t, []byte("{not json"))}
	gm.handleCall(context.Background(), guest, stack)
	requireWireError(t, guest.get(t, stack[0]), "VALIDATION_ERROR")

	stack = []uint64{guest.put(t, bytes.Repeat([]byte("x"), 65))}
	gm.handleLoad(context.Background(), guest, stack)
	e := requireWireError(t, guest.get(t, stack[0]), "VALIDATION_ERROR")
	assert.Contains(t, e.Message, "exceeds maximum")

	stack = []uint64{wireformat.PackPtrLen(1<<16-4, 32)}
	gm.handleCall(context.Background(), guest, stack)
	requireWireError(t, guest.get(t, stack[0]), "INTERNAL_ERROR")
}

func TestGateModule_MissingAllocate(t *testing.T) {
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	guest := newFakeGuest("guest")
	guest.noAlloc = true

	stack := []uint64{guest.put(t, wireformat.LoadRequestWire{Name: "math"})}
	gm.handleLoad(context.Background(), guest, stack)
	assert.Zero(t, stack[0])
}

func TestGateModule_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{}, WithLogger(logger))
	guest := newFakeGuest("guest")

	stack := []uint64{guest.put(t, wireformat.LogMessageWire{
		Level:   "WARN",
		Message: "low on coffee",
		Attrs:   []wireformat.LogAttrWire{{Key: "cups", Type: "int64", Value: "0"}},
	})}
	gm.handleLog(context.Background(), guest, stack)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "low on coffee", rec["msg"])
	assert.Equal(t, "guest", rec["guest"])
	assert.Equal(t, "0", rec["cups"])

	buf.Reset()
	stack = []uint64{guest.put(t, []byte("plain text"))}
	gm.handleLog(context.Background(), guest, stack)
	assert.Contains(t, buf.String(), "plain text")
}

func TestGuestName(t *testing.T) {
	guest := newFakeGuest("module-name")
	assert.Equal(t, "module-name", GuestName(context.Background(), guest))

	ctx := WithGuestName(context.Background(), "configured")
	assert.Equal(t, "configured", GuestName(ctx, guest))

	_, ok := GuestNameFromContext(WithGuestName(context.Background(), ""))
	assert.False(t, ok)
}

func TestGateModule_StateKeyedByInstance(t *testing.T) {
	var requesters []string
	gm := newTestGateModule(t, &policy.RecordingDenialHandler{})
	inner := gm.loader
	gm.loader = ports.LoaderFunc(func(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
		requesters = append(requesters, req.Context.Requester)
		return inner.Load(ctx, req)
	})
	first := newFakeGuest("tenant-1")
	second := newFakeGuest("tenant-2")
	ctx := WithGuestName(context.Background(), "tenant")

	stack := []uint64{first.put(t, wireformat.LoadRequestWire{Name: "math"})}
	gm.handleLoad(ctx, first, stack)
	stack = []uint64{second.put(t, wireformat.LoadRequestWire{Name: "math"})}
	gm.handleLoad(ctx, second, stack)

	assert.Equal(t, []string{"tenant", "tenant"}, requesters)
	_, ok := gm.Locals("tenant")
	assert.False(t, ok)

	// Dropping one instance leaves the other's modules callable.
	gm.Forget("tenant-1")
	_, ok = gm.Locals("tenant-1")
	assert.False(t, ok)
	stack = []uint64{second.put(t, wireformat.CallRequestWire{Module: "math", Member: "sqrt", Payload: json.RawMessage(`{"x":16}`)})}
	gm.handleCall(ctx, second, stack)
	assert.JSONEq(t, `{"value":4}`, string(second.get(t, stack[0])))
}

func TestGateModule_PreloadedModulesCallableWithoutLoad(t *testing.T) {
	math := entities.NewModule("math", map[string]entities.Member{"sqrt": sqrtMember})
	denials := &policy.RecordingDenialHandler{}
	gm := newTestGateModule(t, denials, WithPreloaded(math))
	guest := newFakeGuest("guest")

	out := call(t, gm, guest, wireformat.CallRequestWire{
		Module:  "math",
		Member:  "sqrt",
		Payload: json.RawMessage(`{"x":16}`),
	})
	assert.JSONEq(t, `{"value":4}`, string(out))

	locals, ok := gm.Locals("guest")
	require.True(t, ok)
	_, bound := locals.Module("math")
	assert.True(t, bound)

	requireWireError(t, call(t, gm, guest, wireformat.CallRequestWire{Module: "os", Member: "getcwd"}), "NOT_FOUND")
	assert.Empty(t, denials.Denials())
}

func TestRegisterGate(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	loader := gate.New(registry.NewLoader(testCatalog(t)), entities.DefaultAllowlist())

	gm, err := RegisterGate(ctx, rt, loader)
	require.NoError(t, err)
	require.NotNil(t, gm)
	assert.NotNil(t, rt.Module("capgate"))

	_, err = RegisterGate(ctx, rt, loader)
	require.Error(t, err, "module names are unique per runtime")

	_, err = RegisterGate(ctx, rt, nil, WithModuleName("other"))
	require.Error(t, err)
}
