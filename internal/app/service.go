// Package service wires the valuation engine, contribution registry,
// settlement engine and subscription scheduler into the process-wide
// service the HTTP API and CLI talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/ccsl/internal/adapters/diffsource"
	"github.com/okian/ccsl/internal/adapters/mq/queue"
	"github.com/okian/ccsl/internal/adapters/mq/worker"
	"github.com/okian/ccsl/internal/adapters/repository"
	"github.com/okian/ccsl/internal/config"
	"github.com/okian/ccsl/internal/domain/contribution"
	"github.com/okian/ccsl/internal/domain/dedupe"
	"github.com/okian/ccsl/internal/domain/ledger"
	"github.com/okian/ccsl/internal/domain/license"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/internal/domain/subscription"
	"github.com/okian/ccsl/internal/domain/types"
	"github.com/okian/ccsl/internal/domain/valuation"
	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// ContributionInput describes a contribution to register. When Code is set
// the fragment is evaluated and the evaluations attached.
type ContributionInput struct {
	Contributor string
	FileID      string
	LineStart   int
	LineEnd     int
	Code        string
}

// Service implements the API dependencies for the contribution ledger.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *repository.MemoryStore
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	payments  *settlement.Engine
	valuator  *valuation.Engine
	license   *license.License
	scheduler *subscription.Scheduler
	deduper   dedupe.Deduper

	// Configuration
	workerCount          int
	queueSize            int
	dedupeSize           int
	parallelism          int
	verificationDelay    time.Duration
	verifier             settlement.Verifier
	treasury             string
	projectName          string
	licenseKey           string
	baseRate             float64
	subscriptionAmount   float64
	subscriptionInterval time.Duration
	clock                clockwork.Clock

	// State
	started       bool
	stopScheduler context.CancelFunc
	schedulerDone chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:          runtime.NumCPU() * 2,
		queueSize:            10_000,
		dedupeSize:           50_000,
		parallelism:          runtime.NumCPU(),
		verificationDelay:    settlement.DefaultVerificationDelay,
		treasury:             config.DefaultTreasuryWallet,
		projectName:          "ccsl",
		licenseKey:           "CCSL-DEV-0000",
		baseRate:             license.DefaultBaseRate,
		subscriptionAmount:   0.001,
		subscriptionInterval: time.Minute,
		clock:                clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	return s
}

// FromConfig translates a loaded Config into service options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.VerifierWorkers),
		WithQueueSize(cfg.VerificationQueueSize),
		WithDedupeSize(cfg.IdempotencyCacheSize),
		WithValuationParallelism(cfg.ValuationParallelism),
		WithVerificationDelay(cfg.VerificationDelay()),
		WithTreasuryWallet(cfg.TreasuryWallet),
		WithLicense(cfg.ProjectName, cfg.LicenseKey),
		WithBaseRate(cfg.BaseRatePerLine),
		WithSubscriptions(cfg.SubscriptionAmount, cfg.SubscriptionInterval()),
	}
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.NamedOrNop("service")
	}

	s.logger.Info(ctx, "starting ledger service...")

	registry := contribution.NewRegistry(contribution.WithClock(s.clock))
	lic, err := license.New(s.projectName, s.licenseKey, s.treasury,
		license.WithRegistry(registry),
		license.WithLedger(ledger.New()),
		license.WithBaseRate(s.baseRate),
	)
	if err != nil {
		return fmt.Errorf("license: %w", err)
	}
	if !lic.Validate() {
		s.logger.Warn(ctx, "license key does not validate", logger.String("project", s.projectName))
	}

	verifier := s.verifier
	if verifier == nil {
		verifier = settlement.NewSimulatedVerifier(s.verificationDelay, s.clock)
	}

	s.store = repository.NewMemoryStore(repository.WithCapacity(s.queueSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.payments = settlement.NewEngine(s.store,
		settlement.WithDispatcher(s.queue),
		settlement.WithVerifier(verifier),
		settlement.WithClock(s.clock),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, verifier, s.payments)

	scheduler, err := subscription.NewScheduler(s.payments, s.treasury,
		subscription.WithClock(s.clock),
		subscription.WithLedger(lic.Ledger()),
	)
	if err != nil {
		return fmt.Errorf("subscriptions: %w", err)
	}

	s.license = lic
	s.scheduler = scheduler
	s.valuator = valuation.NewEngine(valuation.WithParallelism(s.parallelism))

	s.pool.Start(ctx)

	if s.subscriptionInterval > 0 {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.stopScheduler = cancel
		s.schedulerDone = make(chan struct{})
		go func() {
			defer close(s.schedulerDone)
			scheduler.Run(runCtx, s.subscriptionInterval, s.subscriptionAmount)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "ledger service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("treasury", s.treasury),
	)

	return nil
}

// Stop stops the scheduler, rejects new payments and drains queued
// verifications. Calling Stop on a stopped service is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping ledger service...")

	if s.stopScheduler != nil {
		s.stopScheduler()
		<-s.schedulerDone
		s.stopScheduler, s.schedulerDone = nil, nil
	}

	var errs []error
	if err := s.payments.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "ledger service stopped", logger.Int("pending", s.payments.Pending()))

	return errors.Join(errs...)
}

// ready returns ErrNotStarted until Start succeeds.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Evaluate scores a code fragment with the built-in evaluators.
func (s *Service) Evaluate(ctx context.Context, code string) (types.Valuation, error) {
	if err := s.ready(); err != nil {
		return types.Valuation{}, err
	}
	evals := s.valuator.Evaluate(code)
	return types.Valuation{Evaluations: evals, Value: valuation.Composite(evals)}, nil
}

// RegisterContribution registers in and, if code was supplied, attaches its
// evaluations.
func (s *Service) RegisterContribution(ctx context.Context, in ContributionInput) (types.Contribution, error) {
	if err := s.ready(); err != nil {
		return types.Contribution{}, err
	}
	c, err := contribution.New(in.Contributor, in.FileID, in.LineStart, in.LineEnd)
	if err != nil {
		return types.Contribution{}, err
	}
	id, err := s.license.RegisterContribution(c)
	if err != nil {
		return types.Contribution{}, err
	}
	if in.Code != "" {
		if err := s.license.Registry().AttachEvaluations(id, s.valuator.Evaluate(in.Code)); err != nil {
			return types.Contribution{}, err
		}
	}
	s.logger.Debug(ctx, "contribution registered",
		logger.String("id", id),
		logger.String("contributor", in.Contributor),
		logger.String("file", in.FileID),
	)
	return s.Contribution(ctx, id)
}

// AttachEvaluations stores evaluations on a registered contribution.
func (s *Service) AttachEvaluations(ctx context.Context, id string, evals []valuation.Evaluation) (types.Contribution, error) {
	if err := s.ready(); err != nil {
		return types.Contribution{}, err
	}
	if err := s.license.Registry().AttachEvaluations(id, evals); err != nil {
		return types.Contribution{}, err
	}
	return s.Contribution(ctx, id)
}

// Contribution returns one contribution with its current value.
func (s *Service) Contribution(_ context.Context, id string) (types.Contribution, error) {
	if err := s.ready(); err != nil {
		return types.Contribution{}, err
	}
	c, ok := s.license.Registry().Get(id)
	if !ok {
		return types.Contribution{}, fmt.Errorf("%w: contribution %s", contribution.ErrNotFound, id)
	}
	return types.FromContribution(c), nil
}

// Contributions lists contributions in registration order.
func (s *Service) Contributions(_ context.Context) []types.Contribution {
	if s.ready() != nil {
		return []types.Contribution{}
	}
	cs := s.license.Contributions()
	out := make([]types.Contribution, 0, len(cs))
	for _, c := range cs {
		out = append(out, types.FromContribution(c))
	}
	return out
}

// ImportDiff registers every added line run of a unified diff as a
// contribution by contributor, valuing the runs concurrently. Runs that
// fail to register are reported in the joined error; the rest are kept.
func (s *Service) ImportDiff(ctx context.Context, contributor string, patch []byte) ([]types.Contribution, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ranges, err := diffsource.Parse(patch)
	if err != nil {
		return nil, err
	}

	fragments := make([]valuation.Fragment, len(ranges))
	for i, r := range ranges {
		fragments[i] = valuation.Fragment{ID: strconv.Itoa(i), Code: r.Code}
	}
	results, err := s.valuator.EvaluateBatch(ctx, fragments)
	if err != nil {
		return nil, err
	}

	var (
		out  []types.Contribution
		errs []error
	)
	for i, r := range ranges {
		c, err := contribution.New(contributor, r.FileID, r.LineStart, r.LineEnd)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s:%d-%d: %w", r.FileID, r.LineStart, r.LineEnd, err))
			continue
		}
		id, err := s.license.RegisterContribution(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s:%d-%d: %w", r.FileID, r.LineStart, r.LineEnd, err))
			continue
		}
		if err := s.license.Registry().AttachEvaluations(id, results[i].Evaluations); err != nil {
			errs = append(errs, err)
			continue
		}
		view, err := s.Contribution(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, view)
	}

	s.logger.Info(ctx, "diff imported",
		logger.String("contributor", contributor),
		logger.Int("ranges", len(ranges)),
		logger.Int("registered", len(out)),
	)
	return out, errors.Join(errs...)
}

// PayContribution sends value * lines * base rate from the treasury to
// destination. The amount is added to the contributor's ledger total once
// the payment verifies.
func (s *Service) PayContribution(ctx context.Context, id, destination string) (*settlement.Handle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	amount, c, err := s.license.PaymentFor(id)
	if err != nil {
		return nil, err
	}
	return s.payments.Send(ctx, s.treasury, destination, amount, id, s.recordOnVerified(ctx, c.Contributor))
}

// Pay sends an arbitrary payment. An empty source pays from the treasury.
// When contributionID names a registered contribution the verified amount
// is credited to its contributor.
func (s *Service) Pay(ctx context.Context, source, destination string, amount float64, contributionID string) (*settlement.Handle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if source == "" {
		source = s.treasury
	}
	var onVerified settlement.VerifiedFunc
	if c, ok := s.license.Registry().Get(contributionID); ok {
		onVerified = s.recordOnVerified(ctx, c.Contributor)
	}
	return s.payments.Send(ctx, source, destination, amount, contributionID, onVerified)
}

func (s *Service) recordOnVerified(ctx context.Context, contributor string) settlement.VerifiedFunc {
	ctx = context.WithoutCancel(ctx)
	return func(tx model.Transaction, verified bool) { //nolint:gocritic // hugeParam
		if !verified {
			return
		}
		if err := s.license.RecordPayment(contributor, tx.Amount); err != nil {
			s.logger.Error(ctx, "ledger record failed",
				logger.String("tx", tx.ID),
				logger.String("contributor", contributor),
				logger.Error(err),
			)
		}
	}
}

// Transaction returns one transaction.
func (s *Service) Transaction(ctx context.Context, id string) (types.Transaction, error) {
	if err := s.ready(); err != nil {
		return types.Transaction{}, err
	}
	tx, ok := s.payments.Transaction(ctx, id)
	if !ok {
		return types.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return types.FromTransaction(tx), nil
}

// Transactions lists transactions in send order, optionally only those for
// one contribution.
func (s *Service) Transactions(ctx context.Context, contributionID string) []types.Transaction {
	txs := s.TransactionLog(ctx, contributionID)
	out := make([]types.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, types.FromTransaction(tx))
	}
	return out
}

// TransactionLog returns raw transaction snapshots for reports.
func (s *Service) TransactionLog(ctx context.Context, contributionID string) []model.Transaction {
	if s.ready() != nil {
		return nil
	}
	if contributionID != "" {
		return s.payments.TransactionsForContribution(ctx, contributionID)
	}
	return s.payments.Transactions(ctx)
}

// VerifyPayment reports whether the transaction has been verified.
func (s *Service) VerifyPayment(ctx context.Context, id string) bool {
	if s.ready() != nil {
		return false
	}
	return s.payments.VerifyPayment(ctx, id)
}

// Subscribe adds or replaces a contributor's recurring payout.
func (s *Service) Subscribe(_ context.Context, contributorID, walletAddress string, periodDays int) (types.Subscription, error) {
	if err := s.ready(); err != nil {
		return types.Subscription{}, err
	}
	sub, err := s.scheduler.Subscribe(contributorID, walletAddress, periodDays)
	if err != nil {
		return types.Subscription{}, err
	}
	return types.FromSubscription(sub), nil
}

// Subscription returns the contributor's subscription.
func (s *Service) Subscription(_ context.Context, contributorID string) (types.Subscription, error) {
	if err := s.ready(); err != nil {
		return types.Subscription{}, err
	}
	sub, ok := s.scheduler.Get(contributorID)
	if !ok {
		return types.Subscription{}, fmt.Errorf("%w: subscription %s", ErrNotFound, contributorID)
	}
	return types.FromSubscription(sub), nil
}

// Subscriptions lists subscriptions ordered by contributor id.
func (s *Service) Subscriptions(_ context.Context) []types.Subscription {
	if s.ready() != nil {
		return []types.Subscription{}
	}
	subs := s.scheduler.List()
	out := make([]types.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, types.FromSubscription(sub))
	}
	return out
}

// Unsubscribe removes a subscription and reports whether one existed.
func (s *Service) Unsubscribe(_ context.Context, contributorID string) bool {
	if s.ready() != nil {
		return false
	}
	return s.scheduler.Remove(contributorID)
}

// ProcessSubscriptions pays every due subscription now and returns how many
// payments were sent.
func (s *Service) ProcessSubscriptions(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.scheduler.ProcessDue(ctx, s.subscriptionAmount), nil
}

// Ledger returns the payment report for the treasury wallet.
func (s *Service) Ledger(_ context.Context) types.Ledger {
	if s.ready() != nil {
		return types.Ledger{Wallet: s.treasury, Entries: []types.LedgerEntry{}, Total: ledger.FormatFloat(0)}
	}
	return types.FromLedger(s.license.Wallet(), s.license.Ledger())
}

// LicenseInfo returns the license view.
func (s *Service) LicenseInfo(_ context.Context) (types.License, error) {
	if err := s.ready(); err != nil {
		return types.License{}, err
	}
	return types.FromLicense(s.license), nil
}

// License exposes the project license for reports. It is nil before Start.
func (s *Service) License() *license.License {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.license
}

// SeenAndRecord claims an idempotency key. A replayed key returns the
// transaction id recorded for it.
func (s *Service) SeenAndRecord(ctx context.Context, key string) (string, bool) {
	txID, seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return txID, seen
}

// Complete binds a claimed idempotency key to its transaction.
func (s *Service) Complete(ctx context.Context, key, txID string) {
	s.deduper.Complete(ctx, key, txID)
}

// Unrecord releases an idempotency key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the current number of remembered idempotency keys.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["pendingPayments"] = s.payments.Pending()
		stats["transactions"] = s.store.Count(ctx)
		stats["contributions"] = s.license.Registry().Len()
		stats["subscriptions"] = len(s.scheduler.List())
		stats["ledgerTotal"] = ledger.FormatAmount(s.license.Ledger().GrandTotal())
		stats["idempotencyKeys"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
