package host

import (
	"fmt"
	"os"
	"strings"

	"github.com/reglet-dev/capgate/application/config"
	apptemplate "github.com/reglet-dev/capgate/application/template"
	"github.com/reglet-dev/capgate/application/validation"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/hostfuncs"
	"github.com/reglet-dev/capgate/infrastructure/parser"
)

// loaderConfig holds configuration for the ConfigLoader.
type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ports.DocumentParser
	validator       ports.SchemaValidator
	strictTemplates bool // Fail on missing template keys
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:          parser.NewYamlParser(),
		strictTemplates: true,
	}
}

// LoaderOption configures the ConfigLoader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom document parser.
func WithParser(p ports.DocumentParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithSchemaValidator replaces the validator built from config.Schema.
func WithSchemaValidator(v ports.SchemaValidator) LoaderOption {
	return func(c *loaderConfig) {
		c.validator = v
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), rendering fails if a referenced key is missing.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// ConfigLoader turns a raw configuration document into a validated
// config.Config: render template, check against the JSON schema, decode,
// validate struct tags, apply defaults.
type ConfigLoader struct {
	config loaderConfig
}

// NewConfigLoader creates a ConfigLoader with defaults.
func NewConfigLoader(opts ...LoaderOption) (*ConfigLoader, error) {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
		)
	}
	if cfg.validator == nil {
		schema, err := config.Schema()
		if err != nil {
			return nil, fmt.Errorf("config schema: %w", err)
		}
		v, err := validation.NewDocumentValidator("capgate-config.json", schema)
		if err != nil {
			return nil, fmt.Errorf("config schema: %w", err)
		}
		cfg.validator = v
	}
	return &ConfigLoader{config: cfg}, nil
}

// Load renders raw with vars and returns the resulting configuration.
func (l *ConfigLoader) Load(raw []byte, vars map[string]interface{}) (*config.Config, error) {
	data, err := l.config.templateEngine.Render(raw, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}

	res, err := l.config.validator.Validate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !res.Valid {
		var b strings.Builder
		b.WriteString("config validation failed:")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "\n- %s: %s", e.Field, e.Message)
		}
		return nil, fmt.Errorf("%s", b.String())
	}

	var cfg config.Config
	if err := l.config.parser.Parse(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFile reads path and loads it. An empty path yields the defaults.
func (l *ConfigLoader) LoadFile(path string, vars map[string]interface{}) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	raw, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return l.Load(raw, vars)
}

// SessionOptions translates cfg into session options.
func SessionOptions(cfg *config.Config) []Option {
	builtin := []hostfuncs.BuiltinOption{
		hostfuncs.WithMaxOutputBytes(cfg.MaxOutputBytes),
		hostfuncs.WithEnvCapabilities(GrantedCapabilities(cfg.ExecCapabilities)),
	}
	if cfg.GlobRoot != "" {
		builtin = append(builtin, hostfuncs.WithGlobFS(os.DirFS(cfg.GlobRoot)))
	}
	return []Option{
		WithAllowlist(cfg.AllowlistSet()),
		WithPreload(cfg.Preload...),
		WithRevoke(cfg.Revoke...),
		WithLoaderAliases(cfg.LoaderAliases...),
		WithTimeout(cfg.TimeoutDuration()),
		WithMaxOutputBytes(cfg.MaxOutputBytes),
		WithBuiltinOptions(builtin...),
	}
}

// ExecutorOptions translates cfg into executor options.
func ExecutorOptions(cfg *config.Config) []ExecutorOption {
	return []ExecutorOption{
		WithGuestName(cfg.GuestName),
		WithGuestTimeout(cfg.TimeoutDuration()),
		WithGuestOutputLimit(cfg.MaxOutputBytes),
	}
}
