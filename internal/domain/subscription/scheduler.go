package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/internal/domain/wallet"
	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// Sender is the part of the settlement engine the scheduler needs.
type Sender interface {
	Send(ctx context.Context, source, destination string, amount float64, contributionID string, onVerified settlement.VerifiedFunc) (*settlement.Handle, error)
}

// Ledger receives verified payouts.
type Ledger interface {
	Record(contributor string, amount float64) error
}

// Scheduler keeps at most one subscription per contributor and pays the
// ones that are due from a fixed source wallet.
type Scheduler struct {
	sender Sender
	source string
	clock  clockwork.Clock
	ledger Ledger
	log    logger.Logger

	mu   sync.Mutex
	subs map[string]Subscription
}

// NewScheduler creates a scheduler paying from sourceWallet through sender.
func NewScheduler(sender Sender, sourceWallet string, opts ...Option) (*Scheduler, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: nil sender", ErrInvalidArgument)
	}
	if !wallet.IsValidAddress(sourceWallet) {
		return nil, fmt.Errorf("%w: source %q", ErrInvalidWallet, sourceWallet)
	}
	s := &Scheduler{
		sender: sender,
		source: sourceWallet,
		clock:  clockwork.NewRealClock(),
		log:    logger.NamedOrNop("subscription"),
		subs:   make(map[string]Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Subscribe builds a subscription starting now and adds it, replacing any
// existing one for the contributor.
func (s *Scheduler) Subscribe(contributorID, walletAddress string, periodDays int) (Subscription, error) {
	sub, err := New(contributorID, walletAddress, periodDays, s.clock.Now())
	if err != nil {
		return Subscription{}, err
	}
	s.AddOrReplace(sub)
	return sub, nil
}

// AddOrReplace stores sub, replacing any subscription with the same contributor id.
func (s *Scheduler) AddOrReplace(sub Subscription) {
	s.mu.Lock()
	s.subs[sub.ContributorID] = sub
	n := len(s.subs)
	s.mu.Unlock()
	metrics.UpdateSubscriptionCount(n)
}

// Remove deletes the contributor's subscription and reports whether one existed.
func (s *Scheduler) Remove(contributorID string) bool {
	s.mu.Lock()
	_, ok := s.subs[contributorID]
	delete(s.subs, contributorID)
	n := len(s.subs)
	s.mu.Unlock()
	metrics.UpdateSubscriptionCount(n)
	return ok
}

// Get returns the contributor's subscription.
func (s *Scheduler) Get(contributorID string) (Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[contributorID]
	return sub, ok
}

// List returns all subscriptions ordered by contributor id.
func (s *Scheduler) List() []Subscription {
	s.mu.Lock()
	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ContributorID < out[j].ContributorID })
	return out
}

// ProcessDue sends amount to every subscription due at the current time and
// returns how many payments were sent. A subscription is claimed by moving
// its next date to now plus its period before the send, so overlapping calls
// pay it once; missed periods are not paid retroactively. A failed send puts
// the previous date back and does not stop the others.
func (s *Scheduler) ProcessDue(ctx context.Context, amount float64) int {
	now := s.clock.Now()

	var due []string
	for _, sub := range s.List() {
		if sub.Due(now) {
			due = append(due, sub.ContributorID)
		}
	}

	sent := 0
	for _, id := range due {
		sub, prev, ok := s.claim(id, now)
		if !ok {
			continue
		}
		if _, err := s.sender.Send(ctx, s.source, sub.WalletAddress, amount, sub.ContributorID, s.onVerified(ctx, sub.ContributorID)); err != nil {
			s.release(sub, prev)
			metrics.RecordSubscriptionPayout("failed")
			s.log.Warn(ctx, "subscription payment failed",
				logger.String("contributor", sub.ContributorID),
				logger.Error(err),
			)
			continue
		}

		metrics.RecordSubscriptionPayout("sent")
		sent++
	}

	if sent > 0 {
		s.log.Info(ctx, "subscription payments sent", logger.Int("count", sent))
	}
	return sent
}

// claim advances a still-present, still-due subscription and returns it
// together with the date it replaced.
func (s *Scheduler) claim(contributorID string, now time.Time) (Subscription, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[contributorID]
	if !ok || !cur.Due(now) {
		return Subscription{}, time.Time{}, false
	}
	prev := cur.NextPaymentDate
	cur.NextPaymentDate = now.Add(Period(cur.PeriodDays))
	s.subs[contributorID] = cur
	return cur, prev, true
}

// release undoes a claim unless the subscription was replaced or removed meanwhile.
func (s *Scheduler) release(claimed Subscription, prev time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[claimed.ContributorID]
	if !ok || !cur.NextPaymentDate.Equal(claimed.NextPaymentDate) || cur.WalletAddress != claimed.WalletAddress {
		return
	}
	cur.NextPaymentDate = prev
	s.subs[claimed.ContributorID] = cur
}

func (s *Scheduler) onVerified(ctx context.Context, contributorID string) settlement.VerifiedFunc {
	if s.ledger == nil {
		return nil
	}
	return func(tx model.Transaction, verified bool) {
		if !verified {
			return
		}
		if err := s.ledger.Record(contributorID, tx.Amount); err != nil {
			s.log.Error(ctx, "ledger record failed",
				logger.String("contributor", contributorID),
				logger.String("tx", tx.ID),
				logger.Error(err),
			)
		}
	}
}

// Run calls ProcessDue every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, amount float64) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.ProcessDue(ctx, amount)
		}
	}
}
