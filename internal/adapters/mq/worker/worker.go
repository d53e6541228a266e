// Package worker runs payment verification jobs taken off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/ccsl/internal/adapters/mq/queue"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/pkg/logger"
	"github.com/okian/ccsl/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Verifier decides whether a provisional transaction is confirmed.
type Verifier interface {
	Verify(ctx context.Context, tx model.Transaction) (bool, error)
}

// Settler receives the verification outcome of each job exactly once.
type Settler interface {
	Settle(ctx context.Context, tx model.Transaction, verified bool, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan Job
}

// Worker processes verification jobs.
type Worker interface {
	// Run processes jobs until the queue is closed and drained.
	Run(ctx context.Context)
	// Done is closed when Run returns.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker for verification jobs.
type InMemoryWorker struct {
	queue    Queue
	verifier Verifier
	settler  Settler
	name     string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, verifier Verifier, settler Settler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		verifier: verifier,
		settler:  settler,
		name:     "worker",
		done:     make(chan struct{}),
		logger:   logger.NamedOrNop("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run processes jobs until the queue channel is closed. Cancelling ctx does
// not abandon queued jobs: every job taken off the queue is settled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx = context.WithoutCancel(ctx)
	for j := range w.queue.Dequeue() {
		if marker, ok := w.queue.(interface{ MarkDequeued() }); ok {
			marker.MarkDequeued()
		}
		w.process(ctx, j)
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// process verifies one job and hands the outcome to the settler.
func (w *InMemoryWorker) process(ctx context.Context, j Job) { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	verified, err := w.verify(ctx, j.Transaction)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "verification_error")
		w.logger.Warn(ctx, "verification failed",
			logger.String("tx", j.Transaction.ID),
			logger.Error(err),
		)
	}
	w.settler.Settle(ctx, j.Transaction, verified, err)
}

// verify calls the verifier, turning a panic into an error.
func (w *InMemoryWorker) verify(ctx context.Context, tx model.Transaction) (verified bool, err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			verified, err = false, fmt.Errorf("verifier panic: %v", r)
		}
	}()
	return w.verifier.Verify(ctx, tx)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive workerCount defaults to
// twice the number of CPUs.
func NewPool(workerCount int, q Queue, verifier Verifier, settler Settler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.NamedOrNop("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, verifier, settler, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "verification workers started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it. It returns an
// error if ctx (or the pool's own timeout) expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}

	return nil
}
