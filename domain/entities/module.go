package entities

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNoSuchMember is returned when a module has no member with the requested name.
var ErrNoSuchMember = errors.New("no such member")

// Member is one callable entry of a module. Requests and responses are JSON.
// The signature matches hostfuncs.ByteHandler so host functions can be used
// as members directly.
type Member func(ctx context.Context, payload []byte) ([]byte, error)

// Module is a loaded capability instance.
// Modules hold their members only; they never reference the loader that
// produced them.
type Module struct {
	members map[string]Member

	// Name is the absolute dotted name of the module.
	Name string

	// Doc is a one-line description shown by listings.
	Doc string

	names []string
}

// NewModule creates a module with a copy of the given members.
func NewModule(name string, members map[string]Member) *Module {
	m := &Module{
		Name:    name,
		members: make(map[string]Member, len(members)),
		names:   make([]string, 0, len(members)),
	}
	for k, fn := range members {
		m.members[k] = fn
		m.names = append(m.names, k)
	}
	sort.Strings(m.names)
	return m
}

// Root returns the root segment of the module name.
func (m *Module) Root() string {
	return RootSegment(m.Name)
}

// Member looks up a member by name.
func (m *Module) Member(name string) (Member, bool) {
	fn, ok := m.members[name]
	return fn, ok
}

// Members returns the sorted member names.
func (m *Module) Members() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Call invokes a member with a JSON payload.
func (m *Module) Call(ctx context.Context, member string, payload []byte) ([]byte, error) {
	fn, ok := m.members[member]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", m.Name, member, ErrNoSuchMember)
	}
	return fn(ctx, payload)
}
