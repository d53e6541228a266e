package subscription

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for due checks and tickers.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLedger records every verified payout in l under the contributor id.
func WithLedger(l Ledger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithLogger sets the logger used by the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}
