package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/hostfuncs"
	"github.com/reglet-dev/capgate/internal/wasmcontext"
	"github.com/reglet-dev/capgate/wireformat"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives guest log records and adapter failures.
	Logger *slog.Logger

	// ModuleName is the host module name (default: "capgate").
	ModuleName string

	// CustomHandlers are exported next to load, call and log.
	CustomHandlers []CustomHandler

	// Preloaded modules are callable by every guest without a load.
	Preloaded []*entities.Module

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32
}

// CustomHandler represents a custom wazero handler that doesn't use the
// packed i64 request/response pattern.
type CustomHandler struct {
	Handler     api.GoModuleFunc
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithLogger sets the logger for guest log records.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithPreloaded makes mods callable by every guest as if each guest had
// loaded them. They must already have passed the gate.
func WithPreloaded(mods ...*entities.Module) AdapterOption {
	return func(c *AdapterConfig) {
		c.Preloaded = append(c.Preloaded, mods...)
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     wireformat.HostModule,
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
		Logger:         slog.Default(),
	}
}

// guestState is what one guest has acquired so far.
type guestState struct {
	rc      *entities.RequestContext
	modules map[string]*entities.Module
	mu      sync.Mutex
}

// GateModule is the instantiated host module. Its only path to capabilities
// is the loader it was registered with, normally a *gate.Gate.
//
// Guest state is keyed by the instance name (api.Module.Name), which must be
// unique among running guests. The name from WithGuestName is only the
// requester that loads and calls are attributed to.
type GateModule struct {
	loader ports.Loader
	guests map[string]*guestState
	config AdapterConfig
	mu     sync.Mutex
}

// RegisterGate instantiates the host module on runtime. It exports:
//
//   - load(i64) i64: LoadRequestWire in, LoadResponseWire or an error body out;
//   - call(i64) i64: CallRequestWire in, the member's JSON response out;
//   - log(i64): LogMessageWire in.
//
// Requests and responses use the packed ptr/len format; responses are
// written into memory obtained from the guest's "allocate" export.
func RegisterGate(ctx context.Context, runtime wazero.Runtime, loader ports.Loader, opts ...AdapterOption) (*GateModule, error) {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if loader == nil {
		return nil, fmt.Errorf("wazero: loader is required")
	}

	g := &GateModule{
		loader: loader,
		guests: make(map[string]*guestState),
		config: cfg,
	}

	i64 := []api.ValueType{api.ValueTypeI64}
	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(g.handleLoad), i64, i64).
		Export("load")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(g.handleCall), i64, i64).
		Export("call")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(g.handleLog), i64, []api.ValueType{}).
		Export("log")

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("wazero: instantiate %s: %w", cfg.ModuleName, err)
	}
	return g, nil
}

// Locals returns the scope the loads of the named instance bound into.
func (g *GateModule) Locals(instance string) (*entities.Scope, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.guests[instance]
	if !ok {
		return nil, false
	}
	return st.rc.Locals, true
}

// Forget drops everything the named instance acquired.
func (g *GateModule) Forget(instance string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.guests, instance)
}

func (g *GateModule) guest(instance, requester string) *guestState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.guests[instance]
	if !ok {
		st = &guestState{
			rc:      entities.NewRequestContext(requester),
			modules: make(map[string]*entities.Module, len(g.config.Preloaded)),
		}
		for _, m := range g.config.Preloaded {
			st.modules[m.Name] = m
			st.rc.Locals.Bind(m.Name, m)
		}
		g.guests[instance] = st
	}
	return st
}

func (g *GateModule) handleLoad(ctx context.Context, mod api.Module, stack []uint64) {
	name := GuestName(ctx, mod)
	payload, errResp := g.readRequest(ctx, mod, stack[0], "load")
	if errResp != nil {
		stack[0] = writeErrorResponse(ctx, mod, *errResp)
		return
	}

	var req wireformat.LoadRequestWire
	if err := json.Unmarshal(payload, &req); err != nil {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewValidationError("invalid load request: "+err.Error()))
		return
	}

	callCtx, cancel := wasmcontext.WireToContext(hostfuncs.WithRequester(ctx, name), req.Context)
	defer cancel()

	st := g.guest(mod.Name(), name)
	rc := st.rc
	if req.Package != "" {
		rc = rc.InPackage(req.Package)
	}

	loaded, err := g.loader.Load(callCtx, entities.LoadRequest{
		Context:    rc,
		Name:       req.Name,
		SubMembers: req.Members,
		Depth:      req.Depth,
	})
	if err != nil {
		g.config.Logger.DebugContext(ctx, "wazero: guest load failed", "guest", name, "name", req.Name, "error", err)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.FromError(err))
		return
	}

	bound := req.Members
	if len(bound) == 0 {
		bound = []string{entities.RootSegment(loaded.Name)}
	}

	st.mu.Lock()
	st.modules[loaded.Name] = loaded
	for _, b := range bound {
		if m, ok := st.rc.Locals.Module(b); ok {
			st.modules[m.Name] = m
		}
	}
	st.mu.Unlock()

	resp, err := json.Marshal(wireformat.LoadResponseWire{
		Module:  loaded.Name,
		Doc:     loaded.Doc,
		Members: loaded.Members(),
		Bound:   bound,
	})
	if err != nil {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewInternalError(err.Error()))
		return
	}
	stack[0] = writeResponse(ctx, mod, resp)
}

func (g *GateModule) handleCall(ctx context.Context, mod api.Module, stack []uint64) {
	name := GuestName(ctx, mod)
	payload, errResp := g.readRequest(ctx, mod, stack[0], "call")
	if errResp != nil {
		stack[0] = writeErrorResponse(ctx, mod, *errResp)
		return
	}

	var req wireformat.CallRequestWire
	if err := json.Unmarshal(payload, &req); err != nil {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewValidationError("invalid call request: "+err.Error()))
		return
	}

	st := g.guest(mod.Name(), name)
	st.mu.Lock()
	target, ok := st.modules[req.Module]
	st.mu.Unlock()
	if !ok {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewNotFoundError(req.Module+" (not loaded)"))
		return
	}
	if _, ok := target.Member(req.Member); !ok {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewNotFoundError(req.Module+"."+req.Member))
		return
	}

	callCtx, cancel := wasmcontext.WireToContext(hostfuncs.WithRequester(ctx, name), req.Context)
	defer cancel()

	resp, err := target.Call(callCtx, req.Member, req.Payload)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: member invocation failed", "guest", name, "member", req.Module+"."+req.Member, "error", err)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.FromError(err))
		return
	}
	stack[0] = writeResponse(ctx, mod, resp)
}

func (g *GateModule) handleLog(ctx context.Context, mod api.Module, stack []uint64) {
	payload, errResp := g.readRequest(ctx, mod, stack[0], "log")
	if errResp != nil {
		return
	}

	guest := GuestName(ctx, mod)
	var msg wireformat.LogMessageWire
	if err := json.Unmarshal(payload, &msg); err != nil {
		g.config.Logger.InfoContext(ctx, "guest log (raw)", "guest", guest, "payload", string(payload))
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(msg.Level)); err != nil {
		level = slog.LevelInfo
	}
	attrs := make([]slog.Attr, 0, len(msg.Attrs)+1)
	attrs = append(attrs, slog.String("guest", guest))
	for _, a := range msg.Attrs {
		attrs = append(attrs, slog.String(a.Key, a.Value))
	}
	g.config.Logger.LogAttrs(ctx, level, msg.Message, attrs...)
}

// readRequest reads the packed request; a non-nil ErrorResponse means the
// request could not be read.
func (g *GateModule) readRequest(ctx context.Context, mod api.Module, packed uint64, fn string) ([]byte, *hostfuncs.ErrorResponse) {
	ptr, length := wireformat.UnpackPtrLen(packed)

	if length > g.config.MaxRequestSize {
		msg := fmt.Sprintf("request size %d exceeds maximum %d bytes", length, g.config.MaxRequestSize)
		slog.ErrorContext(ctx, "wazero: "+msg, "function", fn)
		resp := hostfuncs.NewValidationError(msg)
		return nil, &resp
	}

	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		msg := "failed to read request from guest memory"
		slog.ErrorContext(ctx, "wazero: "+msg, "function", fn)
		resp := hostfuncs.NewInternalError(msg)
		return nil, &resp
	}
	// Read returns a view of guest memory; copy before the guest reuses it.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// writeResponse allocates memory in the guest and writes the response bytes.
// Returns packed ptr+len or 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, data []byte) uint64 {
	allocateFn := mod.ExportedFunction("allocate")
	if allocateFn == nil {
		slog.ErrorContext(ctx, "wazero: guest module missing 'allocate' export")
		return 0
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		slog.ErrorContext(ctx, "wazero: failed to call guest allocate", "error", err)
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		slog.ErrorContext(ctx, "wazero: failed to write response to guest memory")
		return 0
	}

	return wireformat.PackPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by MaxRequestSize and output limits
}

func writeErrorResponse(ctx context.Context, mod api.Module, errResp hostfuncs.ErrorResponse) uint64 {
	return writeResponse(ctx, mod, errResp.ToJSON())
}
