package ports

import "github.com/reglet-dev/capgate/domain/entities"

// LoadPolicy decides whether a load request may reach the original loader.
type LoadPolicy interface {
	// Check returns nil when the request is admitted and a
	// *errors.CapabilityDeniedError otherwise.
	Check(req entities.LoadRequest) error

	// Allowlist returns the immutable set of admitted roots.
	Allowlist() entities.Allowlist
}
