package gate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
)

var (
	// ErrNoLoadBinding is returned when the namespace has no usable load entry point.
	ErrNoLoadBinding = errors.New("namespace has no load binding")

	// ErrAlreadyInstalled is returned when a gate is installed twice.
	ErrAlreadyInstalled = errors.New("load gate already installed")
)

// Revoke removes the named ambient bindings from ns.
// Names that are already absent are skipped: revocation is idempotent.
// Code that captured a binding before Revoke keeps it, so Revoke must run
// before any untrusted code.
func Revoke(ns *entities.Namespace, names ...string) error {
	for _, name := range names {
		if _, err := ns.Unbind(name); err != nil {
			return fmt.Errorf("revoke %q: %w", name, err)
		}
	}
	return nil
}

// Install puts a gate in front of the namespace's load entry point:
//
//  1. the current load binding is captured as the original loader;
//  2. a gate is built around it and the fixed allow-list;
//  3. the load binding is overwritten with the gate;
//  4. configured aliases, and any other binding implementing ports.Loader,
//     are removed, and the namespace is sealed.
//
// Afterwards the gate is the only Loader reachable through ns and no
// binding can be added or removed.
func Install(ns *entities.Namespace, allow entities.Allowlist, opts ...Option) (*Gate, error) {
	cfg := defaultGateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if ns.Sealed() {
		return nil, fmt.Errorf("install gate: %w", entities.ErrNamespaceSealed)
	}

	current, ok := ns.Lookup(entities.BindingLoad)
	if !ok {
		return nil, ErrNoLoadBinding
	}
	if _, isGate := current.(*Gate); isGate {
		return nil, ErrAlreadyInstalled
	}
	original, ok := current.(ports.Loader)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrNoLoadBinding, entities.BindingLoad, current)
	}

	g := New(original, allow, opts...)
	if err := ns.Bind(entities.BindingLoad, g); err != nil {
		return nil, fmt.Errorf("install gate: %w", err)
	}

	if err := Revoke(ns, cfg.aliases...); err != nil {
		return nil, err
	}

	var leaked []string
	ns.Range(func(name string, v any) bool {
		if name == entities.BindingLoad {
			return true
		}
		if _, isLoader := v.(ports.Loader); isLoader {
			leaked = append(leaked, name)
		}
		return true
	})
	if err := Revoke(ns, leaked...); err != nil {
		return nil, err
	}

	ns.Seal()

	cfg.logger.Debug("load gate installed",
		slog.Any("allowlist", allow.Roots()),
		slog.Any("aliases_removed", append(cfg.aliases, leaked...)),
	)
	return g, nil
}
