package settlement_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ccsl/internal/adapters/mq/queue"
	"github.com/okian/ccsl/internal/adapters/mq/worker"
	"github.com/okian/ccsl/internal/adapters/repository"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/settlement"
)

const (
	alice = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
	bob   = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"
)

type callbacks struct {
	mu    sync.Mutex
	calls map[string][]bool
	last  map[string]model.Transaction
}

func newCallbacks() *callbacks {
	return &callbacks{calls: map[string][]bool{}, last: map[string]model.Transaction{}}
}

func (c *callbacks) fn(tx model.Transaction, verified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[tx.ID] = append(c.calls[tx.ID], verified)
	c.last[tx.ID] = tx
}

func (c *callbacks) of(id string) []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.calls[id]...)
}

func (c *callbacks) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += len(v)
	}
	return n
}

func waitCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func instant(ok bool, err error) settlement.Verifier {
	return settlement.VerifierFunc(func(context.Context, model.Transaction) (bool, error) { return ok, err })
}

func TestSendValidation(t *testing.T) {
	Convey("Given an engine", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		engine := settlement.NewEngine(store, settlement.WithVerifier(instant(true, nil)))

		Convey("Invalid wallets are rejected before anything is recorded", func() {
			_, err := engine.Send(ctx, "nope", bob, 1, "c1", nil)
			So(errors.Is(err, settlement.ErrInvalidWallet), ShouldBeTrue)
			_, err = engine.Send(ctx, alice, "1BvBMSEYst", 1, "c1", nil)
			So(errors.Is(err, settlement.ErrInvalidWallet), ShouldBeTrue)
			_, err = engine.Send(ctx, alice, "4J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", 1, "c1", nil)
			So(errors.Is(err, settlement.ErrInvalidWallet), ShouldBeTrue)
			So(engine.Transactions(ctx), ShouldBeEmpty)
		})

		Convey("Non-positive amounts are rejected before anything is recorded", func() {
			for _, amt := range []float64{0, -0.5} {
				_, err := engine.Send(ctx, alice, bob, amt, "c1", nil)
				So(errors.Is(err, settlement.ErrInvalidAmount), ShouldBeTrue)
			}
			So(store.Count(ctx), ShouldEqual, 0)
		})

		Convey("A closed engine refuses new payments", func() {
			So(engine.Close(ctx), ShouldBeNil)
			_, err := engine.Send(ctx, alice, bob, 1, "c1", nil)
			So(errors.Is(err, settlement.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestSendAndVerify(t *testing.T) {
	Convey("Given an engine verifying on a fake clock", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		store := repository.NewMemoryStore()
		engine := settlement.NewEngine(store,
			settlement.WithClock(clock),
			settlement.WithVerifier(settlement.NewSimulatedVerifier(2*time.Second, clock)),
		)
		cb := newCallbacks()

		h, err := engine.Send(ctx, alice, bob, 0.001, "c1", cb.fn)
		So(err, ShouldBeNil)

		Convey("The provisional record is visible immediately", func() {
			tx := h.Transaction()
			So(tx.ID, ShouldNotBeEmpty)
			So(tx.Verified, ShouldBeFalse)
			So(tx.Timestamp, ShouldEqual, clock.Now())

			stored, ok := engine.Transaction(ctx, h.ID())
			So(ok, ShouldBeTrue)
			So(stored.Verified, ShouldBeFalse)
			So(engine.VerifyPayment(ctx, h.ID()), ShouldBeFalse)
			So(engine.Pending(), ShouldEqual, 1)
			So(h.Err(), ShouldBeNil)
		})

		Convey("After the delay the payment is verified once", func() {
			wctx, cancel := waitCtx()
			defer cancel()
			So(clock.BlockUntilContext(wctx, 1), ShouldBeNil)
			clock.Advance(2 * time.Second)

			id, err := h.Wait(wctx)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, h.ID())
			So(engine.VerifyPayment(ctx, id), ShouldBeTrue)
			So(cb.of(id), ShouldResemble, []bool{true})
			So(engine.Pending(), ShouldEqual, 0)
			So(engine.TransactionsForContribution(ctx, "c1"), ShouldHaveLength, 1)

			Convey("and a late duplicate outcome is ignored", func() {
				engine.Settle(ctx, h.Transaction(), false, errors.New("late"))
				So(cb.of(id), ShouldResemble, []bool{true})
				So(engine.VerifyPayment(ctx, id), ShouldBeTrue)
			})
		})

		Convey("Abandoning Wait does not cancel verification", func() {
			short, cancel := context.WithTimeout(ctx, time.Millisecond)
			defer cancel()
			_, err := h.Wait(short)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

			wctx, cancel2 := waitCtx()
			defer cancel2()
			So(clock.BlockUntilContext(wctx, 1), ShouldBeNil)
			clock.Advance(2 * time.Second)
			select {
			case <-h.Done():
			case <-wctx.Done():
			}
			So(engine.VerifyPayment(ctx, h.ID()), ShouldBeTrue)
		})
	})
}

func TestVerificationFailures(t *testing.T) {
	Convey("Given verifiers that do not confirm", t, func() {
		ctx := context.Background()

		cases := []struct {
			name     string
			verifier settlement.Verifier
		}{
			{"errors", instant(false, errors.New("node unreachable"))},
			{"rejects", instant(false, nil)},
			{"panics", settlement.VerifierFunc(func(context.Context, model.Transaction) (bool, error) {
				panic("verifier bug")
			})},
		}
		for _, tc := range cases {
			Convey("When the verifier "+tc.name, func() {
				store := repository.NewMemoryStore()
				engine := settlement.NewEngine(store, settlement.WithVerifier(tc.verifier))
				cb := newCallbacks()

				h, err := engine.Send(ctx, alice, bob, 1, "c1", cb.fn)
				So(err, ShouldBeNil)

				wctx, cancel := waitCtx()
				defer cancel()
				_, err = h.Wait(wctx)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeFalse)

				So(cb.of(h.ID()), ShouldResemble, []bool{false})
				So(engine.VerifyPayment(ctx, h.ID()), ShouldBeFalse)
				stored, ok := store.Get(ctx, h.ID())
				So(ok, ShouldBeTrue)
				So(stored.Verified, ShouldBeFalse)
			})
		}
	})

	Convey("Given a dispatcher that is full", t, func() {
		ctx := context.Background()
		full := queue.NewInMemoryQueue(queue.WithCapacity(1))
		So(full.Enqueue(ctx, model.VerificationJob{}), ShouldBeTrue)
		engine := settlement.NewEngine(repository.NewMemoryStore(), settlement.WithDispatcher(full))
		cb := newCallbacks()

		h, err := engine.Send(ctx, alice, bob, 1, "c1", cb.fn)

		Convey("Send succeeds but the payment settles as failed", func() {
			So(err, ShouldBeNil)
			wctx, cancel := waitCtx()
			defer cancel()
			_, err = h.Wait(wctx)
			So(errors.Is(err, settlement.ErrBackpressure), ShouldBeTrue)
			So(cb.of(h.ID()), ShouldResemble, []bool{false})
			So(engine.Transactions(ctx), ShouldHaveLength, 1)
		})
	})

	Convey("Given a callback that panics", t, func() {
		ctx := context.Background()
		engine := settlement.NewEngine(repository.NewMemoryStore(), settlement.WithVerifier(instant(true, nil)))
		h, err := engine.Send(ctx, alice, bob, 1, "c1", func(model.Transaction, bool) { panic("callback bug") })
		So(err, ShouldBeNil)

		Convey("The handle still resolves", func() {
			wctx, cancel := waitCtx()
			defer cancel()
			id, err := h.Wait(wctx)
			So(err, ShouldBeNil)
			So(engine.VerifyPayment(ctx, id), ShouldBeTrue)
		})
	})
}

func TestConcurrentSends(t *testing.T) {
	Convey("Given many concurrent payments through the worker pool", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		store := repository.NewMemoryStore()
		engine := settlement.NewEngine(store, settlement.WithDispatcher(q))
		pool := worker.NewPool(8, q, settlement.NewSimulatedVerifier(time.Millisecond, nil), engine)
		pool.Start(ctx)

		var fired atomic.Int64
		cb := newCallbacks()
		var handles []*settlement.Handle
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				h, err := engine.Send(ctx, alice, bob, 0.01, fmt.Sprintf("c%d", i%10), func(tx model.Transaction, ok bool) {
					fired.Add(1)
					cb.fn(tx, ok)
				})
				if err == nil {
					mu.Lock()
					handles = append(handles, h)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Convey("Every payment verifies and calls back exactly once", func() {
			wctx, cancel := waitCtx()
			defer cancel()
			So(handles, ShouldHaveLength, 100)
			ids := map[string]bool{}
			for _, h := range handles {
				id, err := h.Wait(wctx)
				So(err, ShouldBeNil)
				ids[id] = true
			}
			So(ids, ShouldHaveLength, 100)
			So(pool.Shutdown(ctx), ShouldBeNil)
			So(fired.Load(), ShouldEqual, 100)
			So(cb.total(), ShouldEqual, 100)
			for _, tx := range engine.Transactions(ctx) {
				So(tx.Verified, ShouldBeTrue)
			}
			So(engine.TransactionsForContribution(ctx, "c3"), ShouldHaveLength, 10)
		})
	})
}
