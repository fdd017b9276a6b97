// Package schema generates JSON schemas for configuration documents and
// capability request payloads.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type generatorConfig struct {
	title       string
	description string
	compact     bool
}

// Option configures GenerateSchema.
type Option func(*generatorConfig)

// WithTitle sets the schema's title keyword.
func WithTitle(title string) Option {
	return func(c *generatorConfig) {
		c.title = title
	}
}

// WithDescription sets the schema's description keyword.
func WithDescription(description string) Option {
	return func(c *generatorConfig) {
		c.description = description
	}
}

// WithCompact emits the schema without indentation.
func WithCompact() Option {
	return func(c *generatorConfig) {
		c.compact = true
	}
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go value.
// Struct definitions are expanded inline at the root. Fields without
// `omitempty` are listed as required.
func GenerateSchema(v interface{}, opts ...Option) ([]byte, error) {
	var cfg generatorConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	s := reflector.Reflect(v)
	if cfg.title != "" {
		s.Title = cfg.title
	}
	if cfg.description != "" {
		s.Description = cfg.description
	}

	var (
		data []byte
		err  error
	)
	if cfg.compact {
		data, err = json.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
