// Package registry holds the module catalog and the original loader that
// instantiates catalogued modules on request.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/capgate/application/schema"
	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
)

var _ ports.ModuleCatalog = (*Registry)(nil)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Entry describes one catalogued module.
type Entry struct {
	Factory ports.ModuleFactory

	// Schemas maps member names to the JSON schema of their request payload.
	Schemas map[string]string

	Name string
	Doc  string
}

// EntryOption configures an Entry during registration.
type EntryOption func(*Entry) error

// WithDoc sets the one-line description of a module.
func WithDoc(doc string) EntryOption {
	return func(e *Entry) error {
		e.Doc = doc
		return nil
	}
}

// WithRequestModel records the JSON schema of a member's request, generated
// from a Go value of the request type.
func WithRequestModel(member string, model any) EntryOption {
	return func(e *Entry) error {
		data, err := schema.GenerateSchema(model, schema.WithTitle(e.Name+"."+member), schema.WithCompact())
		if err != nil {
			return fmt.Errorf("schema for %s.%s: %w", e.Name, member, err)
		}
		e.Schemas[member] = string(data)
		return nil
	}
}

// WithRequestModels is WithRequestModel for several members at once.
func WithRequestModels(models map[string]any) EntryOption {
	return func(e *Entry) error {
		for member, model := range models {
			if err := WithRequestModel(member, model)(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// Registry is the catalog of modules the original loader can instantiate,
// keyed by absolute dotted name.
type Registry struct {
	config  registryConfig
	entries sync.Map // map[string]*Entry
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Register catalogues factory under an absolute module name.
func (r *Registry) Register(name string, factory ports.ModuleFactory, opts ...EntryOption) error {
	if err := entities.ValidateName(name); err != nil {
		return fmt.Errorf("module %q: %w", name, err)
	}
	if factory == nil {
		return fmt.Errorf("module %q: factory is nil", name)
	}

	entry := &Entry{
		Name:    name,
		Factory: factory,
		Schemas: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(entry); err != nil {
			return err
		}
	}

	if !r.config.strictMode {
		r.entries.Store(name, entry)
		return nil
	}
	if _, loaded := r.entries.LoadOrStore(name, entry); loaded {
		return fmt.Errorf("module %q already registered", name)
	}
	return nil
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (ports.ModuleFactory, bool) {
	e, ok := r.Describe(name)
	if !ok {
		return nil, false
	}
	return e.Factory, true
}

// Describe returns the catalog entry for name.
func (r *Registry) Describe(name string) (*Entry, bool) {
	v, ok := r.entries.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Schema retrieves the request schema of a module member.
func (r *Registry) Schema(name, member string) (string, bool) {
	e, ok := r.Describe(name)
	if !ok {
		return "", false
	}
	s, ok := e.Schemas[member]
	return s, ok
}

// Names returns all registered module names, sorted.
func (r *Registry) Names() []string {
	var keys []string
	r.entries.Range(func(k, _ interface{}) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}
