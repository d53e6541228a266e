package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ccsl/internal/config"
	"github.com/okian/ccsl/internal/loadgen"
)

// Default load run constants.
const (
	defaultContributions = 1000
	defaultContributors  = 25
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultReplayEvery   = 10
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

type loadgenOptions struct {
	cfg      loadgen.Config
	deadline time.Duration
}

func newLoadgenCmd() *cobra.Command {
	opts := &loadgenOptions{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Register and pay generated contributions against a running service",
		Long: "loadgen registers generated contributions, pays each one through\n" +
			"POST /payments with an idempotency key, replays some of the payments\n" +
			"and checks the ledger moved by exactly the verified amount. Run it\n" +
			"against a service nobody else is paying through.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadgen(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&opts.cfg.Contributions, "contributions", defaultContributions, "Number of contributions to register and pay")
	f.IntVar(&opts.cfg.Contributors, "contributors", defaultContributors, "Number of distinct contributors")
	f.IntVar(&opts.cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
	f.DurationVar(&opts.cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.StringVar(&opts.cfg.Wallet, "wallet", config.DefaultTreasuryWallet, "Destination wallet for payments")
	f.IntVar(&opts.cfg.ReplayEvery, "replay-every", defaultReplayEvery, "Replay every n-th payment with the same idempotency key (0 disables)")
	f.StringVarP(&opts.cfg.OutputFile, "output", "o", "", "Write generated contributions to this JSON file")
	f.DurationVar(&opts.deadline, "deadline", defaultRunTimeout, "Abort the run after this long")
	return cmd
}

func runLoadgen(cmd *cobra.Command, opts *loadgenOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.deadline)
	defer cancel()

	cfg := opts.cfg
	cfg.Verbose, _ = cmd.Flags().GetBool("verbose")

	stats, err := loadgen.Run(ctx, &cfg)
	if stats != nil && stats.Generated > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
	}
	return err
}
