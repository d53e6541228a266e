// Package ledger keeps cumulative per-contributor payment totals.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/okian/ccsl/pkg/metrics"
)

// AmountPlaces is the number of decimal places amounts are rendered with.
const AmountPlaces = 8

// Sentinel kinds for ledger errors.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidContributor = errors.New("invalid contributor")
)

// Entry is one contributor's cumulative total.
type Entry struct {
	Contributor string
	Total       decimal.Decimal
}

// Ledger is an append-only map of contributor to total paid. Totals never
// decrease. It is safe for concurrent use.
type Ledger struct {
	mu     sync.RWMutex
	totals map[string]decimal.Decimal
	grand  decimal.Decimal
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{totals: make(map[string]decimal.Decimal)}
}

// Record adds amount to contributor's total.
func (l *Ledger) Record(contributor string, amount float64) error {
	if strings.TrimSpace(contributor) == "" {
		return ErrInvalidContributor
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return l.RecordDecimal(contributor, decimal.NewFromFloat(amount))
}

// RecordDecimal adds an exact amount to contributor's total.
func (l *Ledger) RecordDecimal(contributor string, amount decimal.Decimal) error {
	if strings.TrimSpace(contributor) == "" {
		return ErrInvalidContributor
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}

	l.mu.Lock()
	l.totals[contributor] = l.totals[contributor].Add(amount)
	l.grand = l.grand.Add(amount)
	grand := l.grand.InexactFloat64()
	l.mu.Unlock()

	metrics.UpdateLedgerTotal(grand)
	return nil
}

// Total returns contributor's cumulative total, zero if never paid.
func (l *Ledger) Total(contributor string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals[contributor]
}

// GrandTotal returns the sum over all contributors.
func (l *Ledger) GrandTotal() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.grand
}

// Entries returns every contributor's total sorted by contributor name.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.totals))
	for who, total := range l.totals {
		out = append(out, Entry{Contributor: who, Total: total})
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Contributor < out[j].Contributor })
	return out
}

// FormatAmount renders an amount with eight decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountPlaces)
}

// FormatFloat renders a float amount with eight decimal places.
func FormatFloat(amount float64) string {
	return FormatAmount(decimal.NewFromFloat(amount))
}
