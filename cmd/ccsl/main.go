// Command ccsl values code fragments, imports diffs as paid contributions and
// drives load against a running ledger service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/ccsl/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	verbose   bool
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ccsl",
		Short: "Composite code valuation and contribution settlement ledger",
		Long: "ccsl scores code fragments on six quality metrics, registers them as\n" +
			"contributions and pays contributors through the settlement engine.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress at info level")
	pf.StringVar(&opts.logFormat, "log-format", logger.FormatText, "Log format: text or json")

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newLoadgenCmd())
	return root
}

// setupLogging sends logs to stderr, quiet unless --verbose.
func setupLogging(cmd *cobra.Command, opts *rootOptions) error {
	if err := logger.InitWithOptions(logger.Options{Format: opts.logFormat, Output: cmd.ErrOrStderr()}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "warn"
	if opts.verbose {
		level = "info"
	}
	return logger.SetLevelString(level)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
