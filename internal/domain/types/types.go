// Package types contains the JSON views returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/ccsl/internal/domain/contribution"
	"github.com/okian/ccsl/internal/domain/ledger"
	"github.com/okian/ccsl/internal/domain/license"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/subscription"
	"github.com/okian/ccsl/internal/domain/valuation"
)

// Valuation is the response of a fragment evaluation.
type Valuation struct {
	Evaluations []valuation.Evaluation `json:"evaluations"`
	Value       float64                `json:"value"`
}

// Contribution is a registered contribution with its current value.
type Contribution struct {
	ID           string                 `json:"id"`
	Contributor  string                 `json:"contributor"`
	FileID       string                 `json:"file_id"`
	LineStart    int                    `json:"line_start"`
	LineEnd      int                    `json:"line_end"`
	Value        float64                `json:"value"`
	Evaluations  []valuation.Evaluation `json:"evaluations"`
	RegisteredAt time.Time              `json:"registered_at"`
}

// Transaction is a payment transaction.
type Transaction struct {
	ID                string    `json:"id"`
	SourceWallet      string    `json:"source_wallet"`
	DestinationWallet string    `json:"destination_wallet"`
	Amount            string    `json:"amount"`
	Timestamp         time.Time `json:"timestamp"`
	ContributionID    string    `json:"contribution_id"`
	Verified          bool      `json:"verified"`
}

// LedgerEntry is one contributor's cumulative total.
type LedgerEntry struct {
	Contributor string `json:"contributor"`
	Total       string `json:"total"`
}

// Ledger is the payment report.
type Ledger struct {
	Wallet  string        `json:"wallet"`
	Entries []LedgerEntry `json:"entries"`
	Total   string        `json:"total"`
}

// Subscription is a recurring payout.
type Subscription struct {
	ContributorID   string    `json:"contributor_id"`
	WalletAddress   string    `json:"wallet_address"`
	PeriodDays      int       `json:"period_days"`
	NextPaymentDate time.Time `json:"next_payment_date"`
}

// License describes the licensed project and its contributions.
type License struct {
	ProjectName   string         `json:"project_name"`
	Key           string         `json:"license_key"`
	Valid         bool           `json:"valid"`
	Wallet        string         `json:"wallet"`
	BaseRate      float64        `json:"base_rate_per_line"`
	Contributions []Contribution `json:"contributions"`
}

// FromContribution converts a registry snapshot.
func FromContribution(c *contribution.Contribution) Contribution {
	evals := c.Evaluations()
	if evals == nil {
		evals = []valuation.Evaluation{}
	}
	return Contribution{
		ID:           c.ID,
		Contributor:  c.Contributor,
		FileID:       c.FileID,
		LineStart:    c.LineStart,
		LineEnd:      c.LineEnd,
		Value:        c.Value(),
		Evaluations:  evals,
		RegisteredAt: c.RegisteredAt,
	}
}

// FromTransaction converts a transaction; the amount is rendered with eight decimals.
func FromTransaction(tx model.Transaction) Transaction { //nolint:gocritic // hugeParam
	return Transaction{
		ID:                tx.ID,
		SourceWallet:      tx.SourceWallet,
		DestinationWallet: tx.DestinationWallet,
		Amount:            ledger.FormatFloat(tx.Amount),
		Timestamp:         tx.Timestamp,
		ContributionID:    tx.ContributionID,
		Verified:          tx.Verified,
	}
}

// FromSubscription converts a subscription.
func FromSubscription(s subscription.Subscription) Subscription {
	return Subscription{
		ContributorID:   s.ContributorID,
		WalletAddress:   s.WalletAddress,
		PeriodDays:      s.PeriodDays,
		NextPaymentDate: s.NextPaymentDate,
	}
}

// FromLedger builds the payment report for wallet.
func FromLedger(wallet string, l *ledger.Ledger) Ledger {
	entries := l.Entries()
	out := Ledger{Wallet: wallet, Entries: make([]LedgerEntry, 0, len(entries)), Total: ledger.FormatAmount(l.GrandTotal())}
	for _, e := range entries {
		out.Entries = append(out.Entries, LedgerEntry{Contributor: e.Contributor, Total: ledger.FormatAmount(e.Total)})
	}
	return out
}

// FromLicense builds the license info view.
func FromLicense(l *license.License) License {
	cs := l.Contributions()
	out := License{
		ProjectName:   l.ProjectName(),
		Key:           l.Key(),
		Valid:         l.Validate(),
		Wallet:        l.Wallet(),
		BaseRate:      l.BaseRate(),
		Contributions: make([]Contribution, 0, len(cs)),
	}
	for _, c := range cs {
		out.Contributions = append(out.Contributions, FromContribution(c))
	}
	return out
}
