package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/domain/model"
)

// DefaultVerificationDelay is the simulated confirmation time.
const DefaultVerificationDelay = 2 * time.Second

// Verifier decides whether a provisional transaction is confirmed.
type Verifier interface {
	Verify(ctx context.Context, tx model.Transaction) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, tx model.Transaction) (bool, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, tx model.Transaction) (bool, error) {
	return f(ctx, tx)
}

// SimulatedVerifier confirms every transaction after a fixed delay.
type SimulatedVerifier struct {
	delay time.Duration
	clock clockwork.Clock
}

// NewSimulatedVerifier creates a verifier that waits delay on clock. A nil
// clock uses real time.
func NewSimulatedVerifier(delay time.Duration, clock clockwork.Clock) *SimulatedVerifier {
	if delay < 0 {
		delay = 0
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SimulatedVerifier{delay: delay, clock: clock}
}

// Verify waits for the configured delay and confirms tx.
func (v *SimulatedVerifier) Verify(ctx context.Context, tx model.Transaction) (bool, error) { //nolint:gocritic // hugeParam
	if v.delay == 0 {
		return true, nil
	}
	select {
	case <-v.clock.After(v.delay):
		return true, nil
	case <-ctx.Done():
		return false, fmt.Errorf("verify %s: %w", tx.ID, ctx.Err())
	}
}
