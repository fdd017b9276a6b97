// Package gate implements the two bootstrap steps that restrict what running
// code can acquire: the capability revoker, which removes dangerous ambient
// bindings, and the load gate, which becomes the only path from a capability
// name to a capability instance.
//
// Typical bootstrap:
//
//	ns := entities.NewNamespace(map[string]any{
//	    entities.BindingLoad:   loader,
//	    entities.BindingLoader: loader,
//	    entities.BindingOpen:   openFile,
//	})
//	if err := gate.Revoke(ns, entities.BindingOpen); err != nil { ... }
//	g, err := gate.Install(ns, entities.DefaultAllowlist())
//
// After Install the namespace is sealed and its only Loader is the gate.
package gate
