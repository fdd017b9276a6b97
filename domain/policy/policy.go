// Package policy implements the allow-list decision used by the load gate.
package policy

import (
	"fmt"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/domain/ports"
)

// DenialKindLoad is the kind reported to denial handlers for gate refusals.
const DenialKindLoad = "load"

// policyConfig holds configuration for the Policy engine.
type policyConfig struct {
	denialHandler ports.DenialHandler // Handler invoked on policy denials
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		denialHandler: &StderrDenialHandler{}, // Log to stderr by default
	}
}

// PolicyOption configures the Policy.
type PolicyOption func(*policyConfig)

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) PolicyOption {
	return func(c *policyConfig) {
		if h != nil {
			c.denialHandler = h
		}
	}
}

// Policy admits load requests whose root segment is allow-listed.
// It holds no mutable state and is safe for concurrent use.
type Policy struct {
	config policyConfig
	allow  entities.Allowlist
}

// NewPolicy creates a Policy over a fixed allow-list.
func NewPolicy(allow entities.Allowlist, opts ...PolicyOption) ports.LoadPolicy {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Policy{config: cfg, allow: allow}
}

// Allowlist returns the admitted roots.
func (p *Policy) Allowlist() entities.Allowlist {
	return p.allow
}

// Check admits req when the root of its name is allow-listed. Relative
// requests must also resolve to an allow-listed root; requests that cannot
// be resolved are left for the loader to reject.
func (p *Policy) Check(req entities.LoadRequest) error {
	if !p.allow.Allows(req.Name) {
		return p.deny(req, "", "root not allow-listed")
	}

	if req.Depth > 0 {
		abs, err := req.AbsoluteName()
		if err != nil {
			return nil
		}
		if !p.allow.Allows(abs) {
			reason := fmt.Sprintf("resolves to %q", abs)
			return p.deny(req, reason, reason)
		}
	}

	return nil
}

func (p *Policy) deny(req entities.LoadRequest, reason, logReason string) error {
	p.config.denialHandler.OnDenial(DenialKindLoad, req, logReason)
	return &errors.CapabilityDeniedError{Name: req.Name, Reason: reason}
}
