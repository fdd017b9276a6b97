// Package config defines the capgate session configuration document.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/capgate/application/schema"
	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
)

// Defaults applied to fields left unset.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxOutputBytes = 1 << 20
	DefaultLogLevel       = "info"
	DefaultGuestName      = "guest"
)

// Config is the session configuration. A nil list means "use the default";
// an explicitly empty list is kept, so `allowlist: []` denies every load.
type Config struct {
	Allowlist        []string `yaml:"allowlist,omitempty" json:"allowlist,omitempty" validate:"omitempty,dive,capname"`
	Preload          []string `yaml:"preload,omitempty" json:"preload,omitempty" validate:"omitempty,dive,capname"`
	Revoke           []string `yaml:"revoke,omitempty" json:"revoke,omitempty" validate:"omitempty,dive,required"`
	LoaderAliases    []string `yaml:"loader_aliases,omitempty" json:"loader_aliases,omitempty" validate:"omitempty,dive,required,ne=load"`
	ExecCapabilities []string `yaml:"exec_capabilities,omitempty" json:"exec_capabilities,omitempty" validate:"omitempty,dive,required"`
	Timeout          string   `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"omitempty,duration"`
	GlobRoot         string   `yaml:"glob_root,omitempty" json:"glob_root,omitempty"`
	LogLevel         string   `yaml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	GuestName        string   `yaml:"guest_name,omitempty" json:"guest_name,omitempty" validate:"omitempty,capname"`
	MaxOutputBytes   int      `yaml:"max_output_bytes,omitempty" json:"max_output_bytes,omitempty" validate:"omitempty,min=1"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Allowlist == nil {
		c.Allowlist = entities.DefaultRoots()
	}
	if c.Preload == nil {
		c.Preload = []string{"numpy", "scipy"}
	}
	if c.Revoke == nil {
		c.Revoke = []string{entities.BindingOpen}
	}
	if c.LoaderAliases == nil {
		c.LoaderAliases = []string{entities.BindingLoader}
	}
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout.String()
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.GuestName == "" {
		c.GuestName = DefaultGuestName
	}
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AllowlistSet builds the immutable allow-list.
func (c *Config) AllowlistSet() entities.Allowlist {
	return entities.NewAllowlist(c.Allowlist...)
}

// validate is a package-level singleton; building one per call is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("capname", func(fl validator.FieldLevel) bool {
		return entities.ValidateName(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Validate runs the struct tags over c. The first failing field is reported
// as a *domainerrors.ConfigError.
func Validate(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &domainerrors.ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("failed on %q with value %v", fe.Tag(), fe.Value()),
		}
	}
	return &domainerrors.ConfigError{Err: err}
}

// Schema returns the JSON schema describing Config documents.
func Schema() ([]byte, error) {
	return schema.GenerateSchema(&Config{})
}
