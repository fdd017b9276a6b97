package entities

import (
	"sort"
	"sync"
)

// Scope is a requester's local binding table.
// Values are either *Module or Member. Safe for concurrent use.
type Scope struct {
	values map[string]any
	mu     sync.RWMutex
}

// NewScope creates an empty Scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]any)}
}

// Bind stores v under name, replacing any previous binding.
func (s *Scope) Bind(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// Get returns the raw binding for name.
func (s *Scope) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Module returns the module bound under name.
func (s *Scope) Module(name string) (*Module, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Module)
	return m, ok
}

// Member returns the member bound under name.
func (s *Scope) Member(name string) (Member, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	m, ok := v.(Member)
	return m, ok
}

// Names returns the bound names in sorted order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
