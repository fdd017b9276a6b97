package entities

import (
	"errors"
	"sort"
	"sync"
)

// Well-known ambient binding names.
const (
	// BindingLoad is the process-wide "load a capability by name" entry point.
	BindingLoad = "load"

	// BindingLoader is an alias exposing the unrestricted loader directly.
	BindingLoader = "loader"

	// BindingOpen grants direct file opening.
	BindingOpen = "open"

	// BindingPrint writes to the session's standard output.
	BindingPrint = "print"
)

// ErrNamespaceSealed is returned when a sealed namespace is modified.
var ErrNamespaceSealed = errors.New("namespace is sealed")

// Namespace is the table of ambient bindings visible to code in a session.
// Once sealed it is read-only for the rest of its life.
type Namespace struct {
	bindings map[string]any
	mu       sync.RWMutex
	sealed   bool
}

// NewNamespace creates an unsealed namespace holding a copy of bindings.
func NewNamespace(bindings map[string]any) *Namespace {
	n := &Namespace{bindings: make(map[string]any, len(bindings))}
	for k, v := range bindings {
		n.bindings[k] = v
	}
	return n
}

// Lookup returns the value bound to name.
func (n *Namespace) Lookup(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.bindings[name]
	return v, ok
}

// Names returns the bound names in sorted order.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.bindings))
	for name := range n.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.bindings)
}

// Range calls fn for every binding in name order until fn returns false.
func (n *Namespace) Range(fn func(name string, v any) bool) {
	for _, name := range n.Names() {
		v, ok := n.Lookup(name)
		if !ok {
			continue
		}
		if !fn(name, v) {
			return
		}
	}
}

// Bind sets name to v.
func (n *Namespace) Bind(name string, v any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sealed {
		return ErrNamespaceSealed
	}
	n.bindings[name] = v
	return nil
}

// Unbind removes name and reports whether it was bound.
func (n *Namespace) Unbind(name string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sealed {
		return false, ErrNamespaceSealed
	}
	_, ok := n.bindings[name]
	delete(n.bindings, name)
	return ok, nil
}

// Seal makes the namespace read-only. Sealing twice is a no-op.
func (n *Namespace) Seal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sealed = true
}

// Sealed reports whether Seal has been called.
func (n *Namespace) Sealed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sealed
}

// Restrict builds a new unsealed namespace containing only the listed names.
// Names that are not bound in n are skipped; everything else is left out.
func (n *Namespace) Restrict(names ...string) *Namespace {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := &Namespace{bindings: make(map[string]any, len(names))}
	for _, name := range names {
		if v, ok := n.bindings[name]; ok {
			out.bindings[name] = v
		}
	}
	return out
}
