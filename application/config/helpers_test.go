package config_test

import (
	"testing"

	"github.com/reglet-dev/capgate/application/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	vars := config.Vars{
		"name":   "guest",
		"count":  "12",
		"float":  float64(3),
		"roots":  "math, re,,glob",
		"list":   []interface{}{"a", "b"},
		"mixed":  []interface{}{"a", 1},
		"number": 7,
	}

	s, ok := config.GetString(vars, "name")
	assert.True(t, ok)
	assert.Equal(t, "guest", s)
	_, ok = config.GetString(vars, "number")
	assert.False(t, ok)

	n, ok := config.GetInt(vars, "count")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	n, ok = config.GetInt(vars, "float")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = config.GetInt(vars, "name")
	assert.False(t, ok)

	list, ok := config.GetStringSlice(vars, "roots")
	assert.True(t, ok)
	assert.Equal(t, []string{"math", "re", "glob"}, list)
	list, ok = config.GetStringSlice(vars, "list")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, list)
	_, ok = config.GetStringSlice(vars, "mixed")
	assert.False(t, ok)

	assert.Equal(t, "fallback", config.GetStringDefault(vars, "missing", "fallback"))

	_, err := config.MustGetString(vars, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParseAssignments(t *testing.T) {
	vars, err := config.ParseAssignments([]string{"timeout=2s", "allowlist=math,re", "glob_root="})
	require.NoError(t, err)
	assert.Equal(t, config.Vars{"timeout": "2s", "allowlist": "math,re", "glob_root": ""}, vars)

	_, err = config.ParseAssignments([]string{"novalue"})
	require.Error(t, err)
	_, err = config.ParseAssignments([]string{"=x"})
	require.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()

	err := cfg.ApplyOverrides(config.Vars{
		"allowlist":        "math,re",
		"preload":          "",
		"timeout":          "1s",
		"log_level":        "debug",
		"max_output_bytes": "4096",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"math", "re"}, cfg.Allowlist)
	assert.Empty(t, cfg.Preload)
	assert.Equal(t, "1s", cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4096, cfg.MaxOutputBytes)
	assert.Equal(t, []string{"open"}, cfg.Revoke, "untouched keys keep their value")
}

func TestApplyOverrides_Errors(t *testing.T) {
	cfg := config.Default()

	require.Error(t, cfg.ApplyOverrides(config.Vars{"importlib": "yes"}))
	require.Error(t, cfg.ApplyOverrides(config.Vars{"max_output_bytes": "lots"}))
	require.Error(t, cfg.ApplyOverrides(config.Vars{"allowlist": 3}))
}
