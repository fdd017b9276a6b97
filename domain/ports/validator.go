package ports

import "github.com/reglet-dev/capgate/domain/entities"

// SchemaValidator validates a raw JSON or YAML document against a schema.
type SchemaValidator interface {
	Validate(document []byte) (*entities.ValidationResult, error)
}
