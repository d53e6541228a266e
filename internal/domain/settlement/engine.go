// Package settlement sends micropayments and confirms them asynchronously.
//
// Send validates its arguments, appends an unverified transaction to the log
// and returns a Handle at once. A verification job then runs on its own; when
// it finishes the log entry is updated, the caller's callback runs and the
// handle resolves, each exactly once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/wallet"
	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// Log is the transaction store the engine writes to.
type Log interface {
	Append(ctx context.Context, tx model.Transaction) error
	MarkVerified(ctx context.Context, id string) (model.Transaction, error)
	Get(ctx context.Context, id string) (model.Transaction, bool)
	List(ctx context.Context) []model.Transaction
	ListByContribution(ctx context.Context, contributionID string) []model.Transaction
}

// Dispatcher accepts verification jobs for asynchronous processing. A
// dispatcher that accepts a job must eventually report its outcome through
// Engine.Settle.
type Dispatcher interface {
	Enqueue(ctx context.Context, job model.VerificationJob) bool
}

// VerifiedFunc is called once per payment with the final record and outcome.
type VerifiedFunc func(tx model.Transaction, verified bool)

type pending struct {
	handle     *Handle
	onVerified VerifiedFunc
	sentAt     time.Time
}

// Engine sends payments and settles their verification outcomes.
type Engine struct {
	log        Log
	dispatcher Dispatcher
	verifier   Verifier
	clock      clockwork.Clock
	newID      func() string
	logger     logger.Logger

	mu       sync.Mutex
	pending  map[string]*pending
	closed   bool
	inflight sync.WaitGroup
}

// NewEngine creates an engine writing to log. Without WithDispatcher each
// payment is verified on its own goroutine by a SimulatedVerifier using the
// default delay, unless WithVerifier says otherwise.
func NewEngine(log Log, opts ...Option) *Engine {
	e := &Engine{
		log:     log,
		clock:   clockwork.NewRealClock(),
		newID:   uuid.NewString,
		logger:  logger.NamedOrNop("settlement"),
		pending: make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.verifier == nil {
		e.verifier = NewSimulatedVerifier(DefaultVerificationDelay, e.clock)
	}
	return e
}

// Send records an unverified payment and schedules its verification.
// Invalid wallets or amounts fail before anything is recorded. onVerified
// may be nil.
func (e *Engine) Send(ctx context.Context, source, destination string, amount float64, contributionID string, onVerified VerifiedFunc) (*Handle, error) {
	if !wallet.IsValidAddress(source) {
		return nil, fmt.Errorf("%w: source %q", ErrInvalidWallet, source)
	}
	if !wallet.IsValidAddress(destination) {
		return nil, fmt.Errorf("%w: destination %q", ErrInvalidWallet, destination)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	tx := model.Transaction{
		ID:                e.newID(),
		SourceWallet:      source,
		DestinationWallet: destination,
		Amount:            amount,
		Timestamp:         e.clock.Now(),
		ContributionID:    contributionID,
	}
	h := newHandle(tx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if err := e.log.Append(ctx, tx); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	e.pending[tx.ID] = &pending{handle: h, onVerified: onVerified, sentAt: time.Now()}
	if e.dispatcher == nil {
		e.inflight.Add(1)
	}
	e.mu.Unlock()

	metrics.RecordPaymentSent(amount)
	e.logger.Info(ctx, "payment sent",
		logger.String("tx", tx.ID),
		logger.String("contribution", contributionID),
		logger.Float64("amount", amount),
	)

	if e.dispatcher == nil {
		go e.verifyInline(context.WithoutCancel(ctx), tx)
		return h, nil
	}

	job := model.VerificationJob{Transaction: tx, EnqueuedAt: e.clock.Now()}
	if !e.dispatcher.Enqueue(context.WithoutCancel(ctx), job) {
		e.Settle(ctx, tx, false, ErrBackpressure)
	}
	return h, nil
}

// verifyInline runs the verifier on the caller-independent goroutine used
// when no dispatcher is configured.
func (e *Engine) verifyInline(ctx context.Context, tx model.Transaction) { //nolint:gocritic // hugeParam
	defer e.inflight.Done()
	verified, err := func() (ok bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				ok, err = false, fmt.Errorf("verifier panic: %v", r)
			}
		}()
		return e.verifier.Verify(ctx, tx)
	}()
	e.Settle(ctx, tx, verified, err)
}

// Settle applies a verification outcome. Only the first outcome for a
// transaction has an effect. On success the log entry is marked verified;
// on failure it stays unverified. The callback runs before the handle
// resolves.
func (e *Engine) Settle(ctx context.Context, tx model.Transaction, verified bool, err error) { //nolint:gocritic // hugeParam
	e.mu.Lock()
	p, ok := e.pending[tx.ID]
	delete(e.pending, tx.ID)
	e.mu.Unlock()
	if !ok {
		e.logger.Warn(ctx, "outcome for unknown or settled payment ignored", logger.String("tx", tx.ID))
		return
	}

	if err == nil && !verified {
		err = ErrVerificationFailed
	}

	final := tx
	if err == nil {
		updated, markErr := e.log.MarkVerified(ctx, tx.ID)
		if markErr != nil {
			err = fmt.Errorf("%w: %w", ErrVerificationFailed, markErr)
		} else {
			final = updated
		}
	} else if cur, found := e.log.Get(ctx, tx.ID); found {
		final = cur
	}
	ok = err == nil

	latency := float64(time.Since(p.sentAt).Microseconds()) / 1000
	if ok {
		metrics.RecordPaymentVerified(latency)
		e.logger.Info(ctx, "payment verified", logger.String("tx", tx.ID))
	} else {
		metrics.RecordPaymentFailed(failureReason(err), latency)
		e.logger.Warn(ctx, "payment not verified", logger.String("tx", tx.ID), logger.Error(err))
	}

	defer p.handle.resolve(err)
	if p.onVerified != nil {
		e.callback(ctx, p.onVerified, final, ok)
	}
}

func (e *Engine) callback(ctx context.Context, fn VerifiedFunc, tx model.Transaction, verified bool) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("settlement", "callback_panic")
			e.logger.Error(ctx, "verification callback panicked",
				logger.String("tx", tx.ID),
				logger.Any("panic", r),
			)
		}
	}()
	fn(tx, verified)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrBackpressure):
		return "backpressure"
	case errors.Is(err, ErrVerificationFailed):
		return "rejected"
	default:
		return "verifier_error"
	}
}

// VerifyPayment reports whether the transaction has been confirmed. Unknown
// ids report false.
func (e *Engine) VerifyPayment(ctx context.Context, id string) bool {
	tx, ok := e.log.Get(ctx, id)
	return ok && tx.Verified
}

// Transaction returns one transaction by id.
func (e *Engine) Transaction(ctx context.Context, id string) (model.Transaction, bool) {
	return e.log.Get(ctx, id)
}

// Transactions returns every transaction in send order.
func (e *Engine) Transactions(ctx context.Context) []model.Transaction {
	return e.log.List(ctx)
}

// TransactionsForContribution returns the transactions settling one contribution.
func (e *Engine) TransactionsForContribution(ctx context.Context, contributionID string) []model.Transaction {
	return e.log.ListByContribution(ctx, contributionID)
}

// Pending returns the number of payments awaiting an outcome.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Close rejects further sends and waits for goroutine-dispatched
// verifications to finish. Jobs owned by an external dispatcher are drained
// by that dispatcher's own shutdown.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settlement close: %w", ctx.Err())
	}
}
