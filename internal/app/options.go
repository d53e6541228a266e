package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of verification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the verification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithValuationParallelism limits concurrent valuations during a diff import.
func WithValuationParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithVerificationDelay sets the simulated confirmation delay.
func WithVerificationDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.verificationDelay = d
		}
	}
}

// WithVerifier replaces the simulated verifier.
func WithVerifier(v settlement.Verifier) Option {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithTreasuryWallet sets the wallet contribution and subscription payouts
// are sent from.
func WithTreasuryWallet(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.treasury = addr
		}
	}
}

// WithLicense sets the licensed project name and key.
func WithLicense(projectName, key string) Option {
	return func(s *Service) {
		s.projectName = projectName
		s.licenseKey = key
	}
}

// WithBaseRate sets the payment per line at a composite value of 1.
func WithBaseRate(rate float64) Option {
	return func(s *Service) {
		if rate > 0 {
			s.baseRate = rate
		}
	}
}

// WithSubscriptions sets the per-payout amount and the scheduler tick. A zero
// interval leaves processing to explicit ProcessSubscriptions calls.
func WithSubscriptions(amount float64, interval time.Duration) Option {
	return func(s *Service) {
		if amount > 0 {
			s.subscriptionAmount = amount
		}
		if interval >= 0 {
			s.subscriptionInterval = interval
		}
	}
}

// WithClock sets the clock used for timestamps, verification delays and the
// subscription schedule.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
