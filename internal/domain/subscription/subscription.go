// Package subscription pays contributors a fixed amount on a recurring schedule.
package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ccsl/internal/domain/wallet"
)

// Day is the length of one subscription period unit.
const Day = 24 * time.Hour

// Sentinel kinds for subscription errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidWallet   = errors.New("invalid wallet address")
)

// Subscription is a recurring payout to one contributor.
type Subscription struct {
	ContributorID   string
	WalletAddress   string
	PeriodDays      int
	NextPaymentDate time.Time
}

// New validates a subscription whose first payment is due one period after now.
func New(contributorID, walletAddress string, periodDays int, now time.Time) (Subscription, error) {
	if strings.TrimSpace(contributorID) == "" {
		return Subscription{}, fmt.Errorf("%w: empty contributor id", ErrInvalidArgument)
	}
	if periodDays <= 0 {
		return Subscription{}, fmt.Errorf("%w: period %d days", ErrInvalidArgument, periodDays)
	}
	if !wallet.IsValidAddress(walletAddress) {
		return Subscription{}, fmt.Errorf("%w: %q", ErrInvalidWallet, walletAddress)
	}
	return Subscription{
		ContributorID:   contributorID,
		WalletAddress:   walletAddress,
		PeriodDays:      periodDays,
		NextPaymentDate: now.Add(Period(periodDays)),
	}, nil
}

// Period converts a number of days to a duration.
func Period(days int) time.Duration {
	return time.Duration(days) * Day
}

// Due reports whether a payment is owed at now.
func (s Subscription) Due(now time.Time) bool {
	return !s.NextPaymentDate.After(now)
}
