package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/okian/ccsl/internal/adapters/source"
	"github.com/okian/ccsl/internal/domain/valuation"
	"github.com/okian/ccsl/internal/report"
)

type evaluateOptions struct {
	start  int
	end    int
	format string
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate <file>",
		Short: "Score a file or a line range of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.start, "start", 0, "First line, 1-based (default 1)")
	f.IntVar(&opts.end, "end", 0, "Last line, inclusive (default last line)")
	f.StringVarP(&opts.format, "format", "f", "ascii", "Output format: ascii or markdown")
	return cmd
}

func runEvaluate(cmd *cobra.Command, path string, opts *evaluateOptions) error {
	mode, err := report.ParseMode(opts.format)
	if err != nil {
		return err
	}

	code, total, err := source.ReadFile(path)
	if err != nil {
		return err
	}
	start, end := 1, total
	if opts.start > 0 || opts.end > 0 {
		if opts.start > 0 {
			start = opts.start
		}
		if opts.end > 0 {
			end = opts.end
		}
		if code, err = source.ReadRange(path, start, end); err != nil {
			return err
		}
		end = min(end, total)
	}

	meta, err := readMetadata(path)
	if err != nil {
		return err
	}

	evals := valuation.NewEngine().Evaluate(code)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\nLines: %d-%d\n", path, start, end)
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		fmt.Fprintf(out, "%s: %s\n", k, meta[k])
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.Evaluations(mode, evals))
	return nil
}

func readMetadata(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return source.ParseMetadata(f)
}
