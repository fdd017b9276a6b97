package config_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/reglet-dev/capgate/application/config"
	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, entities.DefaultRoots(), cfg.Allowlist)
	assert.Equal(t, []string{"numpy", "scipy"}, cfg.Preload)
	assert.Equal(t, []string{"open"}, cfg.Revoke)
	assert.Equal(t, []string{"loader"}, cfg.LoaderAliases)
	assert.Equal(t, config.DefaultTimeout, cfg.TimeoutDuration())
	assert.Equal(t, config.DefaultMaxOutputBytes, cfg.MaxOutputBytes)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, "guest", cfg.GuestName)
	require.NoError(t, config.Validate(cfg))
}

func TestApplyDefaults_KeepsExplicitEmptyLists(t *testing.T) {
	cfg := &config.Config{Allowlist: []string{}, Preload: []string{}}
	cfg.ApplyDefaults()

	assert.Empty(t, cfg.Allowlist)
	assert.NotNil(t, cfg.Allowlist)
	assert.Empty(t, cfg.Preload)
	assert.Equal(t, 0, cfg.AllowlistSet().Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(c *config.Config)
		field string
	}{
		{"invalid root", func(c *config.Config) { c.Allowlist = []string{"math", "1bad"} }, "Config.Allowlist[1]"},
		{"empty preload", func(c *config.Config) { c.Preload = []string{""} }, "Config.Preload[0]"},
		{"bad timeout", func(c *config.Config) { c.Timeout = "soon" }, "Config.Timeout"},
		{"negative timeout", func(c *config.Config) { c.Timeout = "-1s" }, "Config.Timeout"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "trace" }, "Config.LogLevel"},
		{"alias shadows load", func(c *config.Config) { c.LoaderAliases = []string{"load"} }, "Config.LoaderAliases[0]"},
		{"negative output", func(c *config.Config) { c.MaxOutputBytes = -1 }, "Config.MaxOutputBytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mut(cfg)

			err := config.Validate(cfg)
			require.Error(t, err)
			var ce *domainerrors.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestTimeoutDuration(t *testing.T) {
	cfg := &config.Config{Timeout: "250ms"}
	assert.Equal(t, 250*time.Millisecond, cfg.TimeoutDuration())

	cfg.Timeout = "nonsense"
	assert.Equal(t, config.DefaultTimeout, cfg.TimeoutDuration())
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		cfg := &config.Config{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}

func TestSchema(t *testing.T) {
	data, err := config.Schema()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	properties, ok := decoded["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"allowlist", "preload", "revoke", "loader_aliases", "timeout", "max_output_bytes", "glob_root", "log_level", "guest_name"} {
		assert.Contains(t, properties, key)
	}
	assert.Nil(t, decoded["required"], "every field is optional")
}
