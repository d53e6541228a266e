package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ccsl/internal/adapters/repository"
	"github.com/okian/ccsl/internal/domain/ledger"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/settlement"
	"github.com/okian/ccsl/internal/domain/subscription"
)

const (
	treasury = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
	walletA  = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"
	walletB  = "bc1qar0srrr7xfkvy5l643lydnw9re5"
)

type sent struct {
	source, dest, contribution string
	amount                     float64
}

// fakeSender confirms synchronously and can be told to fail per destination.
// delay and onSend run before the send is recorded.
type fakeSender struct {
	mu     sync.Mutex
	sends  []sent
	failTo map[string]bool
	delay  time.Duration
	onSend func(dest string)
}

func (f *fakeSender) Send(_ context.Context, source, dest string, amount float64, contributionID string, cb settlement.VerifiedFunc) (*settlement.Handle, error) {
	if f.onSend != nil {
		f.onSend(dest)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	if f.failTo[dest] {
		f.mu.Unlock()
		return nil, settlement.ErrInvalidWallet
	}
	f.sends = append(f.sends, sent{source, dest, contributionID, amount})
	f.mu.Unlock()
	if cb != nil {
		cb(model.Transaction{ID: "tx", Amount: amount, ContributionID: contributionID, Verified: true}, true)
	}
	return nil, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func TestNewSubscription(t *testing.T) {
	Convey("Given subscription arguments", t, func() {
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		Convey("The first payment is due one period after creation", func() {
			sub, err := subscription.New("alice", walletA, 30, now)
			So(err, ShouldBeNil)
			So(sub.NextPaymentDate, ShouldEqual, now.Add(30*24*time.Hour))
			So(sub.Due(now), ShouldBeFalse)
			So(sub.Due(sub.NextPaymentDate), ShouldBeTrue)
		})

		Convey("Invalid arguments are rejected", func() {
			_, err := subscription.New("", walletA, 30, now)
			So(errors.Is(err, subscription.ErrInvalidArgument), ShouldBeTrue)
			_, err = subscription.New("alice", walletA, 0, now)
			So(errors.Is(err, subscription.ErrInvalidArgument), ShouldBeTrue)
			_, err = subscription.New("alice", "bogus", 30, now)
			So(errors.Is(err, subscription.ErrInvalidWallet), ShouldBeTrue)
		})
	})
}

func TestSchedulerProcessDue(t *testing.T) {
	Convey("Given a scheduler on a fake clock", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		sender := &fakeSender{failTo: map[string]bool{}}
		book := ledger.New()
		sched, err := subscription.NewScheduler(sender, treasury,
			subscription.WithClock(clock),
			subscription.WithLedger(book),
		)
		So(err, ShouldBeNil)

		_, err = sched.Subscribe("alice", walletA, 30)
		So(err, ShouldBeNil)

		Convey("Nothing is paid before the period elapses", func() {
			clock.Advance(29 * 24 * time.Hour)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 0)
			So(sender.count(), ShouldEqual, 0)
		})

		Convey("A due subscription is paid once and rescheduled", func() {
			clock.Advance(30 * 24 * time.Hour)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 1)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 0)

			sub, ok := sched.Get("alice")
			So(ok, ShouldBeTrue)
			So(sub.NextPaymentDate, ShouldEqual, clock.Now().Add(30*24*time.Hour))
			So(sender.sends[0], ShouldResemble, sent{treasury, walletA, "alice", 0.001})
			So(ledger.FormatAmount(book.Total("alice")), ShouldEqual, "0.00100000")
		})

		Convey("Missed periods are not paid retroactively", func() {
			clock.Advance(95 * 24 * time.Hour)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 1)
			sub, _ := sched.Get("alice")
			So(sub.NextPaymentDate, ShouldEqual, clock.Now().Add(30*24*time.Hour))
		})

		Convey("A failing payment stays due and does not block others", func() {
			_, err := sched.Subscribe("bob", walletB, 30)
			So(err, ShouldBeNil)
			sender.failTo[walletA] = true
			clock.Advance(31 * 24 * time.Hour)

			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 1)
			alice, _ := sched.Get("alice")
			So(alice.Due(clock.Now()), ShouldBeTrue)
			bob, _ := sched.Get("bob")
			So(bob.Due(clock.Now()), ShouldBeFalse)

			delete(sender.failTo, walletA)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 1)
		})

		Convey("Adding again replaces the subscription", func() {
			_, err := sched.Subscribe("alice", walletB, 7)
			So(err, ShouldBeNil)
			So(sched.List(), ShouldHaveLength, 1)
			sub, _ := sched.Get("alice")
			So(sub.WalletAddress, ShouldEqual, walletB)
			So(sub.PeriodDays, ShouldEqual, 7)
		})

		Convey("Overlapping runs pay a due subscription once", func() {
			sender.delay = 20 * time.Millisecond
			clock.Advance(31 * 24 * time.Hour)

			var wg sync.WaitGroup
			counts := make([]int, 2)
			for i := range counts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					counts[i] = sched.ProcessDue(ctx, 0.001)
				}()
			}
			wg.Wait()

			So(counts[0]+counts[1], ShouldEqual, 1)
			So(sender.count(), ShouldEqual, 1)
			So(ledger.FormatAmount(book.Total("alice")), ShouldEqual, "0.00100000")
		})

		Convey("A subscription removed during a run is not paid", func() {
			_, err := sched.Subscribe("bob", walletB, 30)
			So(err, ShouldBeNil)
			sender.onSend = func(dest string) {
				if dest == walletA {
					sched.Remove("bob")
				}
			}
			clock.Advance(31 * 24 * time.Hour)

			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 1)
			So(sender.count(), ShouldEqual, 1)
			So(sender.sends[0].dest, ShouldEqual, walletA)
			_, ok := sched.Get("bob")
			So(ok, ShouldBeFalse)
		})

		Convey("Remove reports whether a subscription existed", func() {
			So(sched.Remove("alice"), ShouldBeTrue)
			So(sched.Remove("alice"), ShouldBeFalse)
			clock.Advance(60 * 24 * time.Hour)
			So(sched.ProcessDue(ctx, 0.001), ShouldEqual, 0)
		})
	})

	Convey("A scheduler needs a sender and a valid source wallet", t, func() {
		_, err := subscription.NewScheduler(nil, treasury)
		So(errors.Is(err, subscription.ErrInvalidArgument), ShouldBeTrue)
		_, err = subscription.NewScheduler(&fakeSender{}, "bad")
		So(errors.Is(err, subscription.ErrInvalidWallet), ShouldBeTrue)
	})
}

func TestSchedulerRun(t *testing.T) {
	Convey("Run processes due subscriptions on every tick", t, func() {
		clock := clockwork.NewFakeClock()
		sender := &fakeSender{}
		sched, err := subscription.NewScheduler(sender, treasury, subscription.WithClock(clock))
		So(err, ShouldBeNil)
		_, err = sched.Subscribe("alice", walletA, 1)
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sched.Run(ctx, time.Hour, 0.5)
			close(done)
		}()

		deadline := time.Now().Add(5 * time.Second)
		for sender.count() == 0 && time.Now().Before(deadline) {
			clock.Advance(time.Hour)
			time.Sleep(time.Millisecond)
		}
		cancel()
		<-done
		So(sender.count(), ShouldEqual, 1)
	})
}

func TestSchedulerWithSettlementEngine(t *testing.T) {
	Convey("Given the real settlement engine", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		store := repository.NewMemoryStore()
		engine := settlement.NewEngine(store, settlement.WithVerifier(settlement.NewSimulatedVerifier(0, nil)))
		book := ledger.New()
		sched, err := subscription.NewScheduler(engine, treasury, subscription.WithClock(clock), subscription.WithLedger(book))
		So(err, ShouldBeNil)
		_, err = sched.Subscribe("alice", walletA, 1)
		So(err, ShouldBeNil)

		clock.Advance(24 * time.Hour)
		So(sched.ProcessDue(ctx, 0.25), ShouldEqual, 1)
		So(engine.Close(ctx), ShouldBeNil)

		Convey("The payout is recorded with the contributor as contribution id", func() {
			txs := engine.TransactionsForContribution(ctx, "alice")
			So(txs, ShouldHaveLength, 1)
			So(txs[0].Verified, ShouldBeTrue)
			So(ledger.FormatAmount(book.Total("alice")), ShouldEqual, "0.25000000")
		})
	})
}
