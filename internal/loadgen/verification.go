package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/ccsl/pkg/logger"
)

// verifyResults checks that the ledger moved by exactly the verified amount
// and that no replayed payment produced a second transaction. It assumes no
// other client pays through the service during the run.
func verifyResults(ctx context.Context, client *HTTPClient, replayed []string, stats *Stats) error {
	log := logger.NamedOrNop("loadgen")

	for _, id := range replayed {
		var txs []transaction
		resp, err := client.Get(ctx, "/transactions?contribution_id="+url.QueryEscape(id), &txs)
		if err != nil {
			return fmt.Errorf("transaction lookup failed: %w", err)
		}
		if resp.Status != http.StatusOK || len(txs) != 1 {
			stats.ReplayMismatch++
			log.Warn(ctx, "replayed contribution has unexpected transactions",
				logger.String("contribution", id),
				logger.Int("transactions", len(txs)))
		}
	}
	if stats.ReplayMismatch > 0 {
		return fmt.Errorf("%w: %d of %d replays", ErrReplayMismatch, stats.ReplayMismatch, stats.Replayed)
	}

	switch {
	case stats.Pending == 0 && !stats.LedgerDelta.Equal(stats.PaidTotal):
		return fmt.Errorf("%w: ledger moved %s, verified %s",
			ErrLedgerMismatch, stats.LedgerDelta.StringFixed(amountPlaces), stats.PaidTotal.StringFixed(amountPlaces))
	case stats.LedgerDelta.LessThan(stats.PaidTotal):
		return fmt.Errorf("%w: ledger moved %s, verified at least %s",
			ErrLedgerMismatch, stats.LedgerDelta.StringFixed(amountPlaces), stats.PaidTotal.StringFixed(amountPlaces))
	case stats.Pending > 0:
		// Pending payments may still land; only the lower bound holds.
		log.Warn(ctx, "payments still pending; ledger checked as lower bound", logger.Int("pending", stats.Pending))
	}

	log.Info(ctx, "ledger consistency verified",
		logger.String("delta", stats.LedgerDelta.StringFixed(amountPlaces)))
	return nil
}
