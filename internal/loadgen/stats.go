package loadgen

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/okian/ccsl/pkg/logger"
)

const percentageMultiplier = 100

// SuccessRate is the share of generated contributions that were paid.
func (s *Stats) SuccessRate() float64 {
	if s.Generated == 0 {
		return 0
	}
	return float64(s.Paid) / float64(s.Generated) * percentageMultiplier
}

// Throughput is paid contributions per second.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Paid) / s.Duration.Seconds()
}

// Summary renders the statistics as a terminal table.
func (s *Stats) Summary() string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Stage", "Count"})
	w.AppendRows([]table.Row{
		{"Generated", s.Generated},
		{"Registered", s.Registered},
		{"Overlap conflicts", s.Conflicts},
		{"Registration failures", s.RegisterFailed},
		{"Skipped (zero value)", s.Skipped},
		{"Paid", s.Paid},
		{"Verified", s.Verified},
		{"Pending", s.Pending},
		{"Payment failures", s.PayFailed},
		{"Idempotent replays", s.Replayed},
		{"Replay mismatches", s.ReplayMismatch},
	})
	w.AppendSeparator()
	w.AppendRows([]table.Row{
		{"Verified total", s.PaidTotal.StringFixed(amountPlaces)},
		{"Ledger delta", s.LedgerDelta.StringFixed(amountPlaces)},
		{"Duration", s.Duration.String()},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{"Payments/s", fmt.Sprintf("%.1f", s.Throughput())},
	})
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return w.Render()
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.NamedOrNop("loadgen").Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("registered", stats.Registered),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("paid", stats.Paid),
		logger.Int("verified", stats.Verified),
		logger.Int("pending", stats.Pending),
		logger.Int("failed", stats.PayFailed+stats.RegisterFailed),
		logger.Int("replayed", stats.Replayed),
		logger.String("verifiedTotal", stats.PaidTotal.StringFixed(amountPlaces)),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", stats.SuccessRate()),
		logger.Float64("paymentsPerSecond", stats.Throughput()))
}
