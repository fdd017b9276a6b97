package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/reglet-dev/capgate/application/config"
	"github.com/reglet-dev/capgate/host"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	vars       []string
	sets       []string
	allow      []string
	timeout    time.Duration
}

// loadConfig reads the config file, then applies environment and flag
// overrides in that order.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CAPGATE_CONFIG")
	}

	vars, err := config.ParseAssignments(o.vars)
	if err != nil {
		return nil, err
	}
	loader, err := host.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.LoadFile(path, vars)
	if err != nil {
		return nil, err
	}

	if level := os.Getenv("CAPGATE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if timeout := os.Getenv("CAPGATE_TIMEOUT"); timeout != "" {
		cfg.Timeout = timeout
	}

	sets, err := config.ParseAssignments(o.sets)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(sets); err != nil {
		return nil, err
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout.String()
	}
	cfg.Allowlist = append(cfg.Allowlist, o.allow...)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSession builds a session from cfg logging to the command's stderr.
func newSession(cmd *cobra.Command, cfg *config.Config) (*host.Session, *slog.Logger, error) {
	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel())
	opts := append(host.SessionOptions(cfg), host.WithLogger(logger))
	s, err := host.NewSession(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return s, logger, nil
}
