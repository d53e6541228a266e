// Package license binds a project's contribution registry and payment
// ledger to its license key and payout wallet.
package license

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/ccsl/internal/domain/contribution"
	"github.com/okian/ccsl/internal/domain/ledger"
	"github.com/okian/ccsl/internal/domain/wallet"
)

// MinKeyLength is the shortest key Validate accepts.
const MinKeyLength = 8

// DefaultBaseRate is the payment per line at a composite value of 1.
const DefaultBaseRate = 0.00001

// Sentinel kinds for license errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidWallet   = errors.New("invalid wallet address")
)

// License is one project's licensing record.
type License struct {
	projectName string
	key         string
	wallet      string
	baseRate    float64

	registry *contribution.Registry
	ledger   *ledger.Ledger
}

// Option applies a configuration option to the License.
type Option func(*License)

// WithRegistry sets the contribution registry.
func WithRegistry(r *contribution.Registry) Option {
	return func(l *License) {
		if r != nil {
			l.registry = r
		}
	}
}

// WithLedger sets the payment ledger.
func WithLedger(lg *ledger.Ledger) Option {
	return func(l *License) {
		if lg != nil {
			l.ledger = lg
		}
	}
}

// WithBaseRate sets the payment per line at a composite value of 1.
func WithBaseRate(rate float64) Option {
	return func(l *License) {
		if rate > 0 {
			l.baseRate = rate
		}
	}
}

// New creates a license. The project name must be non-empty and the payout
// wallet well formed; the key is checked separately by Validate.
func New(projectName, key, payoutWallet string, opts ...Option) (*License, error) {
	if strings.TrimSpace(projectName) == "" {
		return nil, fmt.Errorf("%w: empty project name", ErrInvalidArgument)
	}
	if !wallet.IsValidAddress(payoutWallet) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWallet, payoutWallet)
	}
	l := &License{
		projectName: projectName,
		key:         key,
		wallet:      payoutWallet,
		baseRate:    DefaultBaseRate,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = contribution.NewRegistry()
	}
	if l.ledger == nil {
		l.ledger = ledger.New()
	}
	return l, nil
}

// Validate reports whether the project name and key are set and the key is
// at least MinKeyLength characters.
func (l *License) Validate() bool {
	return l.projectName != "" && l.key != "" && len(l.key) >= MinKeyLength
}

// ProjectName returns the licensed project's name.
func (l *License) ProjectName() string { return l.projectName }

// Key returns the license key.
func (l *License) Key() string { return l.key }

// Wallet returns the wallet payouts are sent from.
func (l *License) Wallet() string { return l.wallet }

// BaseRate returns the payment per line at a value of 1.
func (l *License) BaseRate() float64 { return l.baseRate }

// Registry returns the project's contribution registry.
func (l *License) Registry() *contribution.Registry { return l.registry }

// Ledger returns the project's payment ledger.
func (l *License) Ledger() *ledger.Ledger { return l.ledger }

// RegisterContribution adds c to the registry.
func (l *License) RegisterContribution(c *contribution.Contribution) (string, error) {
	return l.registry.Register(c)
}

// Contributions lists registered contributions in registration order.
func (l *License) Contributions() []*contribution.Contribution {
	return l.registry.List()
}

// RecordPayment adds a settled amount to the contributor's ledger total.
func (l *License) RecordPayment(contributor string, amount float64) error {
	return l.ledger.Record(contributor, amount)
}

// PaymentFor is the amount owed for a contribution: value * lines * base rate.
func (l *License) PaymentFor(contributionID string) (float64, *contribution.Contribution, error) {
	c, ok := l.registry.Get(contributionID)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", contribution.ErrNotFound, contributionID)
	}
	return c.Value() * float64(c.Lines()) * l.baseRate, c, nil
}
