// Package hostfuncs implements the capability modules the original loader
// can hand out, as JSON byte handlers.
//
// Handlers have no WASM runtime dependencies: the same member serves an
// in-process Program through host.Env and a WebAssembly guest through the
// capgate host module. Each module is a set of handlers built into an
// immutable HandlerRegistry, wrapped in middleware, and exposed as an
// entities.Module.
package hostfuncs
