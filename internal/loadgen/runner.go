package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ccsl/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
	amountPlaces        = 8
	idempotencyHeader   = "Idempotency-Key"
	replayedHeader      = "Idempotent-Replayed"
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.NamedOrNop("loadgen")
	runID := uuid.NewString()[:8]

	log.Info(ctx, "starting ledger load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("run", runID),
		logger.Int("contributions", cfg.Contributions),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int("replayEvery", cfg.ReplayEvery))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	var lic licenseInfo
	if _, err := client.Get(ctx, "/license", &lic); err != nil {
		return stats, fmt.Errorf("license lookup failed: %w", err)
	}
	before, err := ledgerTotal(ctx, client)
	if err != nil {
		return stats, err
	}

	contributions := generateContributions(ctx, cfg, runID, stats)

	regs, err := registerContributions(ctx, cfg, client, contributions, stats)
	if err != nil {
		return stats, fmt.Errorf("contribution registration failed: %w", err)
	}

	replayed, err := payContributions(ctx, cfg, client, runID, regs, lic.BaseRate, stats)
	if err != nil {
		return stats, fmt.Errorf("payment submission failed: %w", err)
	}

	after, err := ledgerTotal(ctx, client)
	if err != nil {
		return stats, err
	}
	stats.LedgerDelta = after.Sub(before)

	if err := verifyResults(ctx, client, replayed, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveContributionsToFile(ctx, cfg.OutputFile, contributions); err != nil {
			log.Warn(ctx, "failed to save contributions to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	// The service answers with Prometheus metrics.
	if resp.Status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.Status)
	}
	return nil
}

func ledgerTotal(ctx context.Context, client *HTTPClient) (decimal.Decimal, error) {
	var report ledgerReport
	resp, err := client.Get(ctx, "/ledger", &report)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger lookup failed: %w", err)
	}
	if resp.Status != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ledger lookup failed with status %d", resp.Status)
	}
	total, err := decimal.NewFromString(report.Total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ledger total %q: %w", report.Total, err)
	}
	return total, nil
}

// registerContributions posts every contribution with at most cfg.Workers
// requests in flight. Entries that failed to register are left zero.
func registerContributions(ctx context.Context, cfg *Config, client *HTTPClient, contributions []Contribution, stats *Stats) ([]registered, error) {
	log := logger.NamedOrNop("loadgen")
	out := make([]registered, len(contributions))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range contributions {
		g.Go(func() error {
			var reg registered
			resp, err := client.Post(gctx, "/contributions", contributions[i], nil, &reg)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.RegisterFailed++
				if cfg.Verbose {
					log.Warn(gctx, "register failed", logger.Int("index", i), logger.Error(err))
				}
			case resp.Status == http.StatusCreated:
				stats.Registered++
				out[i] = reg
			case resp.Status == http.StatusConflict:
				stats.Conflicts++
			default:
				stats.RegisterFailed++
				if cfg.Verbose {
					log.Warn(gctx, "register rejected", logger.Int("status", resp.Status), logger.String("body", resp.Body))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info(ctx, "contributions registered",
		logger.Int("registered", stats.Registered),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.RegisterFailed))
	return out, nil
}

// payTally accumulates payment outcomes across workers.
type payTally struct {
	mu       sync.Mutex
	stats    *Stats
	replayed []string
}

// payment records the first response for a payment and reports whether it
// was accepted.
func (t *payTally) payment(resp response, err error, tx transaction) (bool, error) { //nolint:gocritic // hugeParam
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err != nil:
		t.stats.PayFailed++
		return false, nil
	case resp.Status == http.StatusOK && tx.Verified:
		paid, perr := decimal.NewFromString(tx.Amount)
		if perr != nil {
			return false, fmt.Errorf("parse amount %q: %w", tx.Amount, perr)
		}
		t.stats.Paid++
		t.stats.Verified++
		t.stats.PaidTotal = t.stats.PaidTotal.Add(paid)
		return true, nil
	case resp.Status == http.StatusOK || resp.Status == http.StatusAccepted:
		t.stats.Paid++
		t.stats.Pending++
		return true, nil
	default:
		t.stats.PayFailed++
		return false, nil
	}
}

func (t *payTally) skip() {
	t.mu.Lock()
	t.stats.Skipped++
	t.mu.Unlock()
}

func (t *payTally) replay(contributionID string, matched bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Replayed++
	t.replayed = append(t.replayed, contributionID)
	if !matched {
		t.stats.ReplayMismatch++
	}
}

// payContributions pays each registered contribution value * lines * rate
// through POST /payments and waits for verification. Every cfg.ReplayEvery-th
// payment is sent twice with the same key. It returns the ids of replayed
// contributions.
func payContributions(ctx context.Context, cfg *Config, client *HTTPClient, runID string, regs []registered, rate float64, stats *Stats) ([]string, error) {
	log := logger.NamedOrNop("loadgen")
	query := url.Values{}
	query.Set("wait", "true")
	query.Set("timeout", strconv.Itoa(max(int(cfg.Timeout/time.Second)-1, 1)))
	path := "/payments?" + query.Encode()

	tally := &payTally{stats: stats}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, reg := range regs {
		if reg.ID == "" {
			continue
		}
		lines := reg.LineEnd - reg.LineStart + 1
		amount := decimal.NewFromFloat(reg.Value * float64(lines) * rate).Round(amountPlaces)
		if !amount.IsPositive() {
			tally.skip()
			continue
		}

		g.Go(func() error {
			body := paymentRequest{
				DestinationWallet: cfg.Wallet,
				Amount:            amount.InexactFloat64(),
				ContributionID:    reg.ID,
			}
			header := http.Header{}
			header.Set(idempotencyHeader, "loadgen-"+runID+"-"+strconv.Itoa(i))

			var tx transaction
			resp, err := client.Post(gctx, path, body, header, &tx)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ok, terr := tally.payment(resp, err, tx)
			if terr != nil {
				return terr
			}
			if !ok {
				if cfg.Verbose {
					log.Warn(gctx, "payment failed",
						logger.String("contribution", reg.ID),
						logger.Int("status", resp.Status),
						logger.String("body", resp.Body),
						logger.Any("error", err))
				}
				return nil
			}
			if cfg.ReplayEvery <= 0 || i%cfg.ReplayEvery != 0 {
				return nil
			}

			var again transaction
			replay, rerr := client.Post(gctx, path, body, header, &again)
			matched := rerr == nil &&
				replay.Status == http.StatusOK &&
				replay.Header.Get(replayedHeader) == "true" &&
				again.ID == tx.ID
			if !matched {
				log.Warn(gctx, "idempotent replay mismatch",
					logger.String("contribution", reg.ID),
					logger.Int("status", replay.Status),
					logger.String("first", tx.ID),
					logger.String("second", again.ID))
			}
			tally.replay(reg.ID, matched)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info(ctx, "payments submitted",
		logger.Int("paid", stats.Paid),
		logger.Int("verified", stats.Verified),
		logger.Int("pending", stats.Pending),
		logger.Int("failed", stats.PayFailed),
		logger.Int("replayed", stats.Replayed))
	return tally.replayed, nil
}

// saveContributionsToFile writes the generated contributions as a JSON array.
func saveContributionsToFile(ctx context.Context, filename string, contributions []Contribution) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(contributions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contributions: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.NamedOrNop("loadgen").Info(ctx, "contributions saved to file", logger.String("filename", filename))
	return nil
}
