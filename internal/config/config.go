// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/ccsl/internal/domain/wallet"
)

// DefaultTreasuryWallet is a syntactically valid placeholder used when no
// treasury wallet is configured.
const DefaultTreasuryWallet = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ProjectName and LicenseKey identify the licensed project.
	ProjectName string `koanf:"project_name"`
	LicenseKey  string `koanf:"license_key"`

	// TreasuryWallet pays contributions and subscriptions.
	TreasuryWallet string `koanf:"treasury_wallet"`

	// VerificationDelayMS simulates the network confirmation delay.
	VerificationDelayMS int `koanf:"verification_delay_ms"`

	// VerifierWorkers sets the number of verification workers.
	VerifierWorkers int `koanf:"verifier_workers"`

	// VerificationQueueSize bounds the in-memory verification queue.
	VerificationQueueSize int `koanf:"verification_queue_size"`

	// IdempotencyCacheSize bounds the Idempotency-Key cache for POST /payments.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// BaseRatePerLine converts value * lines into a payment amount.
	BaseRatePerLine float64 `koanf:"base_rate_per_line"`

	// SubscriptionAmount is paid per due subscription.
	SubscriptionAmount float64 `koanf:"subscription_amount"`

	// SubscriptionIntervalMS is the scheduler tick. Zero disables the ticker.
	SubscriptionIntervalMS int `koanf:"subscription_interval_ms"`

	// ValuationParallelism limits concurrent fragment valuations in a batch.
	ValuationParallelism int `koanf:"valuation_parallelism"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		ProjectName:            "ccsl",
		LicenseKey:             "CCSL-DEV-0000",
		TreasuryWallet:         DefaultTreasuryWallet,
		VerificationDelayMS:    2000,
		VerifierWorkers:        runtime.NumCPU() * 2,
		VerificationQueueSize:  10_000,
		IdempotencyCacheSize:   50_000,
		BaseRatePerLine:        0.00001,
		SubscriptionAmount:     0.001,
		SubscriptionIntervalMS: 60_000,
		ValuationParallelism:   runtime.NumCPU(),
	}
}

// VerificationDelay returns VerificationDelayMS as a duration.
func (c *Config) VerificationDelay() time.Duration {
	return time.Duration(c.VerificationDelayMS) * time.Millisecond
}

// SubscriptionInterval returns SubscriptionIntervalMS as a duration.
func (c *Config) SubscriptionInterval() time.Duration {
	return time.Duration(c.SubscriptionIntervalMS) * time.Millisecond
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !wallet.IsValidAddress(c.TreasuryWallet):
		return fmt.Errorf("%w: treasury_wallet %q is not a valid address", ErrInvalidConfig, c.TreasuryWallet)
	case c.VerificationDelayMS < 0:
		return fmt.Errorf("%w: verification_delay_ms must not be negative", ErrInvalidConfig)
	case c.VerifierWorkers <= 0:
		return fmt.Errorf("%w: verifier_workers must be positive", ErrInvalidConfig)
	case c.VerificationQueueSize <= 0:
		return fmt.Errorf("%w: verification_queue_size must be positive", ErrInvalidConfig)
	case c.BaseRatePerLine <= 0:
		return fmt.Errorf("%w: base_rate_per_line must be positive", ErrInvalidConfig)
	case c.SubscriptionAmount <= 0:
		return fmt.Errorf("%w: subscription_amount must be positive", ErrInvalidConfig)
	case c.SubscriptionIntervalMS < 0:
		return fmt.Errorf("%w: subscription_interval_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}
