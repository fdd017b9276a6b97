// Package validation checks configuration documents against JSON schemas.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// DocumentValidator validates YAML or JSON documents against one compiled
// schema. It is safe for concurrent use.
type DocumentValidator struct {
	schema *jsonschema.Schema
}

var _ ports.SchemaValidator = (*DocumentValidator)(nil)

// NewDocumentValidator compiles schemaJSON under the resource name url.
func NewDocumentValidator(url string, schemaJSON []byte) (*DocumentValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", url, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", url, err)
	}
	return &DocumentValidator{schema: sch}, nil
}

// Validate decodes document (YAML is a superset of JSON) and checks it.
// Schema violations are reported in the result; only undecodable input is
// returned as an error.
func (v *DocumentValidator) Validate(document []byte) (*entities.ValidationResult, error) {
	obj, err := normalize(document)
	if err != nil {
		return nil, err
	}

	result := &entities.ValidationResult{Valid: true}
	if err := v.schema.Validate(obj); err != nil {
		result.Valid = false
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			result.Errors = flatten(ve)
		} else {
			result.Errors = []entities.ValidationError{{Message: err.Error()}}
		}
	}
	return result, nil
}

// normalize turns a YAML document into the float64/map[string]interface{}
// shape the schema library expects from encoding/json.
func normalize(document []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(document, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}
	var obj interface{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}
	return obj, nil
}

// flatten collects the leaf causes of ve, which carry the specific messages.
func flatten(ve *jsonschema.ValidationError) []entities.ValidationError {
	var out []entities.ValidationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := e.InstanceLocation
			if field == "" {
				field = "/"
			}
			out = append(out, entities.ValidationError{Field: field, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
