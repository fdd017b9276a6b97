// Package template renders configuration documents before they are parsed.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/reglet-dev/capgate/domain/ports"
)

// templateConfig holds configuration for the GoTemplateEngine.
type templateConfig struct {
	name   string
	strict bool // Fail on missing keys
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{
		name:   "config",
		strict: true,
	}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode for missing keys.
// When enabled (default), rendering fails if a referenced key is missing.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// WithName sets the template name reported in parse errors.
func WithName(name string) TemplateOption {
	return func(c *templateConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// GoTemplateEngine implements TemplateEngine using standard text/template.
type GoTemplateEngine struct {
	config templateConfig
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

var funcs = template.FuncMap{
	// default returns fallback when value is empty: {{ default "5s" .vars.timeout }}
	"default": func(fallback, value interface{}) interface{} {
		if value == nil || value == "" {
			return fallback
		}
		return value
	},
	"join":  strings.Join,
	"split": strings.Split,
	"lower": strings.ToLower,
}

// Render processes raw with vars exposed as {{.vars.key}}.
func (e *GoTemplateEngine) Render(raw []byte, vars map[string]interface{}) ([]byte, error) {
	tmpl := template.New(e.config.name).Funcs(funcs)

	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", e.config.name, err)
	}

	if vars == nil {
		vars = map[string]interface{}{}
	}
	data := map[string]interface{}{
		"vars": vars,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", e.config.name, err)
	}

	return buf.Bytes(), nil
}
