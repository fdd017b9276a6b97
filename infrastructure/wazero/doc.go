// Package wazero exposes the load gate to WebAssembly guests running under
// the wazero runtime.
//
// RegisterGate instantiates a host module (default name "capgate") with
// three functions. Every argument and result is a packed i64 holding a
// pointer into guest memory in the high 32 bits and a length in the low 32
// bits; responses are written into memory the guest hands out from its
// "allocate" export.
//
//	load(req i64) i64   // LoadRequestWire -> LoadResponseWire | error body
//	call(req i64) i64   // CallRequestWire -> member response | error body
//	log(msg i64)        // LogMessageWire
//
// A guest can call only modules that one of its own loads returned or bound,
// and every load passes through the loader given to RegisterGate. Failures
// come back as JSON error bodies ({"error", "message", "code"}), never as
// traps.
//
// # Basic Usage
//
//	rt := wazero.NewRuntime(ctx)
//	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
//	gm, err := wazeroadapter.RegisterGate(ctx, rt, session.Gate())
//	if err != nil {
//	    return err
//	}
//	ctx = wazeroadapter.WithGuestName(ctx, "guest")
//	_, err = rt.InstantiateWithConfig(ctx, wasmBytes, wazero.NewModuleConfig().WithName("guest"))
package wazero
