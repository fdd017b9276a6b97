package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reglet-dev/capgate/domain/errors"
)

// Vars is a flat key/value map. It carries template variables for config
// rendering and command-line or environment overrides.
type Vars map[string]interface{}

// GetString extracts a string from vars, returning (value, found).
func GetString(vars Vars, key string) (string, bool) {
	v, ok := vars[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int from vars. Numeric strings are accepted since
// overrides usually arrive as text.
func GetInt(vars Vars, key string) (int, bool) {
	v, ok := vars[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// GetStringSlice extracts a []string from vars. A string value is split on
// commas, so "math,re" and ["math", "re"] are equivalent.
func GetStringSlice(vars Vars, key string) ([]string, bool) {
	v, ok := vars[key]
	if !ok {
		return nil, false
	}
	switch arr := v.(type) {
	case []string:
		return arr, true
	case string:
		if strings.TrimSpace(arr) == "" {
			return []string{}, true
		}
		parts := strings.Split(arr, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	case []interface{}:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// GetStringDefault extracts a string from vars or returns the default value.
func GetStringDefault(vars Vars, key, defaultValue string) string {
	s, ok := GetString(vars, key)
	if !ok {
		return defaultValue
	}
	return s
}

// MustGetString extracts a required string from vars or returns error.
func MustGetString(vars Vars, key string) (string, error) {
	s, ok := GetString(vars, key)
	if !ok {
		return "", &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string field '%s' is missing or not a string", key),
		}
	}
	return s, nil
}

// ParseAssignments turns "key=value" pairs into Vars.
func ParseAssignments(pairs []string) (Vars, error) {
	vars := make(Vars, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &errors.ConfigError{
				Field: pair,
				Err:   fmt.Errorf("expected key=value"),
			}
		}
		vars[key] = value
	}
	return vars, nil
}

// ApplyOverrides copies recognised keys from vars onto c. Unknown keys are
// rejected so a typo does not silently keep the file's value.
func (c *Config) ApplyOverrides(vars Vars) error {
	for key := range vars {
		switch key {
		case "allowlist", "preload", "revoke", "loader_aliases", "exec_capabilities",
			"timeout", "glob_root", "log_level", "guest_name", "max_output_bytes":
		default:
			return &errors.ConfigError{Field: key, Err: fmt.Errorf("unknown override")}
		}
	}

	lists := map[string]*[]string{
		"allowlist":         &c.Allowlist,
		"preload":           &c.Preload,
		"revoke":            &c.Revoke,
		"loader_aliases":    &c.LoaderAliases,
		"exec_capabilities": &c.ExecCapabilities,
	}
	for key, dst := range lists {
		if _, present := vars[key]; !present {
			continue
		}
		v, ok := GetStringSlice(vars, key)
		if !ok {
			return &errors.ConfigError{Field: key, Err: fmt.Errorf("expected a list of strings")}
		}
		*dst = v
	}

	c.Timeout = GetStringDefault(vars, "timeout", c.Timeout)
	c.GlobRoot = GetStringDefault(vars, "glob_root", c.GlobRoot)
	c.LogLevel = GetStringDefault(vars, "log_level", c.LogLevel)
	c.GuestName = GetStringDefault(vars, "guest_name", c.GuestName)

	if _, present := vars["max_output_bytes"]; present {
		n, ok := GetInt(vars, "max_output_bytes")
		if !ok {
			return &errors.ConfigError{Field: "max_output_bytes", Err: fmt.Errorf("expected an integer")}
		}
		c.MaxOutputBytes = n
	}
	return nil
}
