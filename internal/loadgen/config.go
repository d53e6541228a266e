// Package loadgen drives a running ledger service over HTTP: it registers
// generated contributions, pays them concurrently with idempotency keys and
// checks that the ledger moved by exactly the verified amount.
package loadgen

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Contributions int           // Number of contributions to register and pay
	Contributors  int           // Number of distinct contributor names
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Wallet        string        // Destination wallet for every payment
	ReplayEvery   int           // Resend every n-th payment with the same idempotency key; 0 disables
	OutputFile    string        // Optional JSON dump of generated contributions
	Verbose       bool          // Log every failure
}

// Contribution is a generated contribution, sent as the POST /contributions body.
type Contribution struct {
	Contributor string `json:"contributor"`
	FileID      string `json:"file_id"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	Code        string `json:"code"`
}

// registered is the subset of the contribution view the run needs.
type registered struct {
	ID        string  `json:"id"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Value     float64 `json:"value"`
}

type paymentRequest struct {
	DestinationWallet string  `json:"destination_wallet"`
	Amount            float64 `json:"amount"`
	ContributionID    string  `json:"contribution_id"`
}

type transaction struct {
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	ContributionID string `json:"contribution_id"`
	Verified       bool   `json:"verified"`
}

type licenseInfo struct {
	ProjectName string  `json:"project_name"`
	BaseRate    float64 `json:"base_rate_per_line"`
}

type ledgerReport struct {
	Total string `json:"total"`
}

// Stats holds run statistics.
type Stats struct {
	Generated      int
	Registered     int
	Conflicts      int
	RegisterFailed int
	Skipped        int // contributions valued at zero
	Paid           int
	Verified       int
	Pending        int
	PayFailed      int
	Replayed       int
	ReplayMismatch int
	PaidTotal      decimal.Decimal
	LedgerDelta    decimal.Decimal
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
