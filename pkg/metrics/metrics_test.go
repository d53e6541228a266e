package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

// withFreshManager swaps the global manager for one on a private registry.
func withFreshManager(fn func(m *Manager)) {
	prev := globalManager
	m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
	globalManager = m
	defer func() { globalManager = prev }()
	fn(m)
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
			So(manager, ShouldNotBeNil)
			So(manager.namespace, ShouldEqual, "ccsl")
			So(manager.subsystem, ShouldEqual, "ledger")
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.paymentsSent.Inc()

			families, err := registry.Gather()
			So(err, ShouldBeNil)
			names := map[string]bool{}
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["test_unit_payments_sent_total"], ShouldBeTrue)
		})

		Convey("When empty option values are given the defaults stay", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)
			So(manager.namespace, ShouldEqual, "ccsl")
			So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
		})
	})
}

func TestSettlementMetrics(t *testing.T) {
	Convey("Given a fresh manager", t, func() {
		withFreshManager(func(m *Manager) {
			Convey("Sent and verified payments move the pending gauge", func() {
				RecordPaymentSent(0.5)
				RecordPaymentSent(0.25)
				So(testutil.ToFloat64(m.paymentsSent), ShouldEqual, 2)
				So(testutil.ToFloat64(m.paymentAmount), ShouldEqual, 0.75)
				So(testutil.ToFloat64(m.pendingVerifications), ShouldEqual, 2)

				RecordPaymentVerified(2000)
				RecordPaymentFailed("verifier_error", 10)
				So(testutil.ToFloat64(m.paymentsVerified), ShouldEqual, 1)
				So(testutil.ToFloat64(m.paymentsFailed.WithLabelValues("verifier_error")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.pendingVerifications), ShouldEqual, 0)
			})

			Convey("Registry and subscription counters increment", func() {
				RecordContributionRegistered()
				RecordContributionConflict()
				UpdateContributionCount(3)
				RecordSubscriptionPayout("sent")
				RecordSubscriptionPayout("sent")
				UpdateLedgerTotal(1.5)

				So(testutil.ToFloat64(m.contributionsRegistered), ShouldEqual, 1)
				So(testutil.ToFloat64(m.contributionConflicts), ShouldEqual, 1)
				So(testutil.ToFloat64(m.contributionsTotal), ShouldEqual, 3)
				So(testutil.ToFloat64(m.subscriptionPayouts.WithLabelValues("sent")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.ledgerTotal), ShouldEqual, 1.5)
			})

			Convey("Queue and worker recorders do not panic", func() {
				So(func() {
					RecordValuation(0.2)
					RecordEvaluation("impact", 0.4)
					UpdateQueueSize(1)
					UpdateQueueCapacity(10)
					UpdateQueueUtilization(0.1)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(4)
					AddWorkerActive(1)
					AddWorkerActive(-1)
					RecordWorkerProcessingLatency(3)
					RecordWorkerError()
					RecordIdempotentReplay()
					UpdateSubscriptionCount(2)
					RecordHTTPRequest("/ledger", "GET", "200")
					RecordHTTPRequestDuration("/ledger", "GET", "200", 1.2)
					RecordErrorByComponent("api", "bad_request")
					RecordErrorByEndpoint("/ledger", "GET", "bad_request")
				}, ShouldNotPanic)
				So(testutil.ToFloat64(m.queueEnqueued), ShouldEqual, 1)
				So(testutil.ToFloat64(m.workerActiveCount), ShouldEqual, 0)
			})

			Convey("System gauges take the latest sample", func() {
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
				So(testutil.ToFloat64(m.systemMemoryUsage), ShouldEqual, 1024)
				So(testutil.ToFloat64(m.systemGoroutineCount), ShouldEqual, 12)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("The global registry exposes ccsl metrics", t, func() {
		RecordQueueEnqueue()
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)
		So(len(families), ShouldBeGreaterThan, 0)
	})
}
