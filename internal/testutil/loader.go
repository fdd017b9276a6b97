// Package testutil provides shared fakes and assertions for capgate tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockLoader is a stub original loader that records every call.
type MockLoader struct {
	mock.Mock
}

// Load implements ports.Loader.
func (m *MockLoader) Load(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
	args := m.Called(ctx, req)
	mod, _ := args.Get(0).(*entities.Module)
	return mod, args.Error(1)
}

// StubCatalog is an in-memory ports.ModuleCatalog whose factories count
// how often they run.
type StubCatalog struct {
	factories map[string]ports.ModuleFactory
	calls     map[string]*atomic.Int32
	mu        sync.Mutex
}

// NewStubCatalog registers one module per name. Each module has a single
// member "echo" that returns its payload.
func NewStubCatalog(names ...string) *StubCatalog {
	c := &StubCatalog{
		factories: make(map[string]ports.ModuleFactory),
		calls:     make(map[string]*atomic.Int32),
	}
	for _, name := range names {
		c.Add(name, nil)
	}
	return c
}

// Add registers name with the given members, or with "echo" when members is nil.
func (c *StubCatalog) Add(name string, members map[string]entities.Member) {
	if members == nil {
		members = map[string]entities.Member{"echo": Echo}
	}
	counter := &atomic.Int32{}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name] = counter
	c.factories[name] = func(context.Context) (*entities.Module, error) {
		counter.Add(1)
		return entities.NewModule(name, members), nil
	}
}

// Factory implements ports.ModuleCatalog.
func (c *StubCatalog) Factory(name string) (ports.ModuleFactory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.factories[name]
	return f, ok
}

// Names implements ports.ModuleCatalog.
func (c *StubCatalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.factories))
	for name := range c.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Instantiations reports how many times the factory for name ran.
func (c *StubCatalog) Instantiations(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.calls[name]; ok {
		return int(n.Load())
	}
	return 0
}

// TotalInstantiations sums Instantiations over every module.
func (c *StubCatalog) TotalInstantiations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += int(n.Load())
	}
	return total
}

// Echo is a member returning its payload.
func Echo(_ context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}
