// Package parser decodes configuration documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/reglet-dev/capgate/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlParser implements DocumentParser for YAML (and therefore JSON).
type YamlParser struct {
	strict bool
}

// YamlOption configures a YamlParser.
type YamlOption func(*YamlParser)

// WithKnownFields makes decoding fail on keys the target struct does not
// declare. Enabled by default.
func WithKnownFields(enabled bool) YamlOption {
	return func(p *YamlParser) {
		p.strict = enabled
	}
}

// NewYamlParser creates a new YamlParser.
func NewYamlParser(opts ...YamlOption) ports.DocumentParser {
	p := &YamlParser{strict: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes the first YAML document in data into out. An empty
// document leaves out untouched.
func (p *YamlParser) Parse(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode yaml: %w", err)
	}
	return nil
}
