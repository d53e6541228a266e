// Package metrics provides Prometheus metrics for the CCSL valuation and settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the CCSL service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Valuation Metrics
	valuationsTotal  prometheus.Counter
	valuationLatency prometheus.Histogram
	evaluationValue  *prometheus.HistogramVec

	// Contribution Metrics
	contributionsRegistered prometheus.Counter
	contributionConflicts   prometheus.Counter
	contributionsTotal      prometheus.Gauge

	// Settlement Metrics
	paymentsSent         prometheus.Counter
	paymentAmount        prometheus.Counter
	paymentsVerified     prometheus.Counter
	paymentsFailed       *prometheus.CounterVec
	verificationLatency  prometheus.Histogram
	pendingVerifications prometheus.Gauge
	idempotentReplays    prometheus.Counter

	// Subscription and Ledger Metrics
	subscriptionsTotal  prometheus.Gauge
	subscriptionPayouts *prometheus.CounterVec
	ledgerTotal         prometheus.Gauge

	// Queue Metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ccsl",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	scoreBuckets := prometheus.LinearBuckets(0, 0.1, 11)

	m.valuationsTotal = auto.NewCounter(m.counterOpts("valuations_total",
		"Total number of code fragments valued"))
	m.valuationLatency = auto.NewHistogram(m.histogramOpts("valuation_latency_milliseconds",
		"Histogram of composite valuation latency in milliseconds", m.histogramBuckets))
	m.evaluationValue = auto.NewHistogramVec(m.histogramOpts("evaluation_value",
		"Distribution of metric evaluation values by kind", scoreBuckets), []string{"kind"})

	m.contributionsRegistered = auto.NewCounter(m.counterOpts("contributions_registered_total",
		"Total number of contributions accepted by the registry"))
	m.contributionConflicts = auto.NewCounter(m.counterOpts("contribution_conflicts_total",
		"Total number of contributions rejected for overlapping an existing range"))
	m.contributionsTotal = auto.NewGauge(m.gaugeOpts("contributions",
		"Current number of registered contributions"))

	m.paymentsSent = auto.NewCounter(m.counterOpts("payments_sent_total",
		"Total number of payments accepted for settlement"))
	m.paymentAmount = auto.NewCounter(m.counterOpts("payment_amount_total",
		"Sum of amounts accepted for settlement"))
	m.paymentsVerified = auto.NewCounter(m.counterOpts("payments_verified_total",
		"Total number of payments confirmed by the verifier"))
	m.paymentsFailed = auto.NewCounterVec(m.counterOpts("payments_failed_total",
		"Total number of payments whose verification failed"), []string{"reason"})
	m.verificationLatency = auto.NewHistogram(m.histogramOpts("verification_latency_milliseconds",
		"Time from send to verification outcome in milliseconds",
		[]float64{1, 10, 100, 500, 1000, 2000, 3000, 5000, 10000}))
	m.pendingVerifications = auto.NewGauge(m.gaugeOpts("pending_verifications",
		"Payments sent but not yet resolved"))
	m.idempotentReplays = auto.NewCounter(m.counterOpts("idempotent_replays_total",
		"Payment requests answered from the idempotency cache"))

	m.subscriptionsTotal = auto.NewGauge(m.gaugeOpts("subscriptions",
		"Current number of live subscriptions"))
	m.subscriptionPayouts = auto.NewCounterVec(m.counterOpts("subscription_payouts_total",
		"Subscription payouts attempted by result"), []string{"result"})
	m.ledgerTotal = auto.NewGauge(m.gaugeOpts("ledger_total_amount",
		"Cumulative amount recorded in the payment ledger"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current size of the verification queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Maximum verification queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Queue utilization ratio (current size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total",
		"Total number of verification jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total",
		"Total number of verification jobs dequeued"))
	m.queueEnqueueErrs = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Total number of rejected enqueue attempts"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Number of verification workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count",
		"Number of workers currently verifying a payment"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Total number of worker errors"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes",
		"Heap bytes allocated by the process"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines",
		"Number of live goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Average GC pause per cycle in milliseconds", []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50}))
}

// Valuation Metrics Functions.

// RecordValuation counts one composite valuation and its latency in milliseconds.
func RecordValuation(latencyMs float64) {
	globalManager.valuationsTotal.Inc()
	globalManager.valuationLatency.Observe(latencyMs)
}

// RecordEvaluation observes a single metric evaluation value.
func RecordEvaluation(kind string, value float64) {
	globalManager.evaluationValue.WithLabelValues(kind).Observe(value)
}

// Contribution Metrics Functions.

// RecordContributionRegistered increments the accepted contributions counter.
func RecordContributionRegistered() {
	globalManager.contributionsRegistered.Inc()
}

// RecordContributionConflict increments the overlap rejection counter.
func RecordContributionConflict() {
	globalManager.contributionConflicts.Inc()
}

// UpdateContributionCount sets the number of registered contributions.
func UpdateContributionCount(count int) {
	globalManager.contributionsTotal.Set(float64(count))
}

// Settlement Metrics Functions.

// RecordPaymentSent counts an accepted payment and its amount.
func RecordPaymentSent(amount float64) {
	globalManager.paymentsSent.Inc()
	globalManager.paymentAmount.Add(amount)
	globalManager.pendingVerifications.Inc()
}

// RecordPaymentVerified counts a confirmed payment and observes its latency.
func RecordPaymentVerified(latencyMs float64) {
	globalManager.paymentsVerified.Inc()
	globalManager.verificationLatency.Observe(latencyMs)
	globalManager.pendingVerifications.Dec()
}

// RecordPaymentFailed counts a payment whose verification did not succeed.
func RecordPaymentFailed(reason string, latencyMs float64) {
	globalManager.paymentsFailed.WithLabelValues(reason).Inc()
	globalManager.verificationLatency.Observe(latencyMs)
	globalManager.pendingVerifications.Dec()
}

// RecordIdempotentReplay counts a payment request served from the idempotency cache.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// Subscription and Ledger Metrics Functions.

// UpdateSubscriptionCount sets the number of live subscriptions.
func UpdateSubscriptionCount(count int) {
	globalManager.subscriptionsTotal.Set(float64(count))
}

// RecordSubscriptionPayout counts a subscription payout attempt ("sent" or "failed").
func RecordSubscriptionPayout(result string) {
	globalManager.subscriptionPayouts.WithLabelValues(result).Inc()
}

// UpdateLedgerTotal sets the cumulative ledger amount.
func UpdateLedgerTotal(total float64) {
	globalManager.ledgerTotal.Set(total)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the number of busy workers by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap size in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the live goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause in milliseconds.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
