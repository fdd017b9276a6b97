// Command capgate runs untrusted WebAssembly guests behind the load gate
// and inspects the gate's policy.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// exitCodeError carries a guest's non-zero exit code out of RunE.
type exitCodeError struct {
	code uint32
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("guest exited with code %d", e.code)
}

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			os.Exit(int(exit.code)) //nolint:gosec // G115: WASI exit codes fit in an int
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "capgate",
		Short:         "Run untrusted code behind a capability load gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (env CAPGATE_CONFIG)")
	flags.StringSliceVar(&opts.vars, "var", nil, "template variable key=value for the config file")
	flags.StringSliceVar(&opts.sets, "set", nil, "override a config key, e.g. --set preload=math,re")
	flags.StringSliceVar(&opts.allow, "allow", nil, "extra allow-listed roots")
	flags.DurationVar(&opts.timeout, "timeout", 0, "run timeout (env CAPGATE_TIMEOUT)")

	rootCmd.AddCommand(
		runCmd(opts),
		checkCmd(opts),
		listCmd(opts),
		schemaCmd(),
	)
	return rootCmd
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
