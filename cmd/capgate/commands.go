package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/reglet-dev/capgate/application/config"
	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
	"github.com/reglet-dev/capgate/host"
	"github.com/reglet-dev/capgate/host/registry"
	"github.com/spf13/cobra"
)

func runCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <guest.wasm> [args...]",
		Short: "Run a WebAssembly guest behind the gate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read guest: %w", err)
			}

			ctx := cmd.Context()
			session, logger, err := newSession(cmd, cfg)
			if err != nil {
				return err
			}
			execOpts := append(host.ExecutorOptions(cfg),
				host.WithExecutorLogger(logger),
				host.WithGuestArgs(args[1:]...),
			)
			exec, err := host.NewExecutor(ctx, session, execOpts...)
			if err != nil {
				return err
			}
			defer func() { _ = exec.Close(ctx) }()

			res, err := exec.Run(ctx, wasm)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			if res.Truncated {
				logger.Warn("guest output truncated", "limit", cfg.MaxOutputBytes)
			}

			if res.Error != nil {
				return res.Error
			}
			if res.ExitCode != 0 {
				return &exitCodeError{code: res.ExitCode}
			}
			return nil
		},
	}
}

func checkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>...",
		Short: "Report whether capability names pass the gate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			session, _, err := newSession(cmd, cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := session.Bootstrap(ctx); err != nil {
				return err
			}

			rc := entities.NewRequestContext("capgate-check")
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range args {
				_, err := session.Gate().Load(ctx, entities.NewLoadRequest(name, rc))
				fmt.Fprintf(w, "%s\t%s\n", name, verdict(err))
			}
			return w.Flush()
		},
	}
}

func verdict(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, domainerrors.ErrCapabilityDenied):
		return "denied"
	case errors.Is(err, domainerrors.ErrNotFound):
		return "allowed, not found"
	default:
		return "allowed, error: " + err.Error()
	}
}

func listCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogued modules and whether the allow-list admits them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			session, _, err := newSession(cmd, cfg)
			if err != nil {
				return err
			}

			allow := cfg.AllowlistSet()
			reg, _ := session.Catalog().(*registry.Registry)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tALLOWED\tDESCRIPTION")
			for _, name := range session.Catalog().Names() {
				doc := ""
				if reg != nil {
					if e, ok := reg.Describe(name); ok {
						doc = e.Doc
					}
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", name, allow.Allows(name), doc)
			}
			return w.Flush()
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [module.member]",
		Short: "Print the config schema, or the request schema of a module member",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				data, err := config.Schema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			module, member := entities.ParentName(args[0]), entities.LeafName(args[0])
			if module == "" {
				return fmt.Errorf("expected module.member, got %q", args[0])
			}
			reg, err := host.BuiltinCatalog(nil)
			if err != nil {
				return err
			}
			s, ok := reg.Schema(module, member)
			if !ok {
				return fmt.Errorf("no schema for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
