package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/ccsl/internal/app"
	"github.com/okian/ccsl/internal/config"
	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/internal/report"
	"github.com/okian/ccsl/pkg/logger"
)

const stopTimeout = 30 * time.Second

type diffOptions struct {
	contributor string
	wallet      string
	format      string
	pay         bool
	wait        time.Duration
	delay       time.Duration
}

func newDiffCmd() *cobra.Command {
	opts := &diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff <patch|->",
		Short: "Register the added lines of a unified diff as contributions",
		Long: "Each run of added lines in the patch becomes one contribution by\n" +
			"--contributor. With --pay every contribution is paid from the treasury\n" +
			"wallet to --wallet. Settings are read from CCSL_* env and CCSL_CONFIG.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.contributor, "contributor", "c", "", "Contributor credited with the diff (required)")
	f.BoolVar(&opts.pay, "pay", false, "Pay each imported contribution")
	f.StringVarP(&opts.wallet, "wallet", "w", "", "Destination wallet for --pay")
	f.DurationVar(&opts.wait, "wait", 0, "Wait up to this long for payments to verify")
	f.DurationVar(&opts.delay, "delay", 0, "Override the simulated verification delay")
	f.StringVarP(&opts.format, "format", "f", "ascii", "Output format: ascii or markdown")

	_ = cmd.MarkFlagRequired("contributor")
	cmd.MarkFlagsRequiredTogether("pay", "wallet")
	return cmd
}

func runDiff(cmd *cobra.Command, path string, opts *diffOptions) error {
	ctx := cmd.Context()
	mode, err := report.ParseMode(opts.format)
	if err != nil {
		return err
	}

	patch, err := readPatch(cmd, path)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	svcOpts := append(service.FromConfig(cfg),
		service.WithSubscriptions(cfg.SubscriptionAmount, 0),
		service.WithLogger(logger.NamedOrNop("ccsl")),
	)
	if cmd.Flags().Changed("delay") {
		svcOpts = append(svcOpts, service.WithVerificationDelay(opts.delay))
	}
	svc := service.New(svcOpts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		_ = svc.Stop(stopCtx)
	}()

	contributions, err := svc.ImportDiff(ctx, opts.contributor, patch)
	if err != nil {
		if len(contributions) == 0 {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d contribution(s) by %s\n\n", len(contributions), opts.contributor)

	if opts.pay {
		handles := make([]*settlement.Handle, 0, len(contributions))
		for _, c := range contributions {
			h, err := svc.PayContribution(ctx, c.ID, opts.wallet)
			if err != nil {
				return fmt.Errorf("pay %s: %w", c.ID, err)
			}
			handles = append(handles, h)
		}
		if opts.wait > 0 {
			waitForPayments(cmd, handles, opts.wait)
		}
	}

	fmt.Fprintln(out, report.LicenseInfo(mode, svc.License()))
	if opts.pay {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Transactions(mode, svc.TransactionLog(ctx, "")))
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Payments(mode, svc.License().Wallet(), svc.License().Ledger()))
	}
	return nil
}

func waitForPayments(cmd *cobra.Command, handles []*settlement.Handle, d time.Duration) {
	ctx, cancel := context.WithTimeout(cmd.Context(), d)
	defer cancel()
	for _, h := range handles {
		if _, err := h.Wait(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "payment %s: %v\n", h.ID(), err)
		}
	}
}

func readPatch(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	return b, nil
}
