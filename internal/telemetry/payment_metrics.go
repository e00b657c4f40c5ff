package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds Prometheus metrics for the payment core.
// Every method is safe on a nil receiver so components can record
// unconditionally; tests simply leave the global unset.
type PaymentMetrics struct {
	// Lifecycle
	Transactions *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Ignored      *prometheus.CounterVec
	Integrity    *prometheus.CounterVec
	Settled      *prometheus.CounterVec

	// Checkout validation
	Rejected *prometheus.CounterVec

	// Processor
	ProcessorLatency *prometheus.HistogramVec
	ProcessorRetries *prometheus.CounterVec
	ProcessorErrors  *prometheus.CounterVec
	SignatureFailed  *prometheus.CounterVec

	// Reconciliation
	PollRuns     prometheus.Counter
	PollChecked  prometheus.Counter
	PollErrors   prometheus.Counter
	PollExpired  prometheus.Counter
	PollDuration prometheus.Histogram

	// Side effects
	EventsPublished *prometheus.CounterVec
	EmailSent       *prometheus.CounterVec
}

// NewPaymentMetrics creates and registers payment metrics on the default registry.
func NewPaymentMetrics(namespace string) *PaymentMetrics {
	if namespace == "" {
		namespace = "rutavity"
	}

	subsystem := "payment"

	return &PaymentMetrics{
		Transactions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transactions_created_total",
				Help:      "Transactions created by provider and method",
			},
			[]string{"provider", "method"},
		),
		Transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transitions_total",
				Help:      "Committed state transitions",
			},
			[]string{"method", "from", "to"},
		),
		Ignored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_ignored_total",
				Help:      "Events targeting a terminal transaction",
			},
			[]string{"method", "event"},
		),
		Integrity: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "integrity_errors_total",
				Help:      "Settlements aborted for manual review",
			},
			[]string{"method"},
		),
		Settled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settled_amount_total",
				Help:      "Amount settled in major currency units",
			},
			[]string{"method", "currency"},
		),
		Rejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_rejected_total",
				Help:      "Checkouts refused by a precondition",
			},
			[]string{"method", "reason"},
		),
		ProcessorLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processor_request_duration_seconds",
				Help:      "Processor call duration including retries",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		ProcessorRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processor_retries_total",
				Help:      "Processor attempts beyond the first",
			},
			[]string{"operation"},
		),
		ProcessorErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processor_errors_total",
				Help:      "Processor calls that failed after retries",
			},
			[]string{"operation"},
		),
		SignatureFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "signature_failures_total",
				Help:      "Inbound payloads rejected by signature verification",
			},
			[]string{"channel"},
		),
		PollRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_runs_total",
			Help:      "Reconciliation passes",
		}),
		PollChecked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_checked_total",
			Help:      "Transactions examined by reconciliation",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_errors_total",
			Help:      "Transactions that failed to reconcile",
		}),
		PollExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_expired_total",
			Help:      "Transactions moved to error past the staleness horizon",
		}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_duration_seconds",
			Help:      "Reconciliation pass duration",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
		}),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Transition events published by outcome",
			},
			[]string{"outcome"},
		),
		EmailSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_total",
				Help:      "Partner notifications by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// Payments is the global instance used by components. Nil until initialized.
var Payments *PaymentMetrics

// InitPaymentMetrics initializes the global payment metrics instance.
func InitPaymentMetrics(namespace string) *PaymentMetrics {
	Payments = NewPaymentMetrics(namespace)
	return Payments
}

func (m *PaymentMetrics) TransactionCreated(provider, method string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(provider, method).Inc()
}

func (m *PaymentMetrics) Transition(method, from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(method, from, to).Inc()
}

func (m *PaymentMetrics) EventIgnored(method, event string) {
	if m == nil {
		return
	}
	m.Ignored.WithLabelValues(method, event).Inc()
}

func (m *PaymentMetrics) IntegrityFailure(method string) {
	if m == nil {
		return
	}
	m.Integrity.WithLabelValues(method).Inc()
}

func (m *PaymentMetrics) AmountSettled(method, currency string, amount float64) {
	if m == nil {
		return
	}
	m.Settled.WithLabelValues(method, currency).Add(amount)
}

func (m *PaymentMetrics) CheckoutRejected(method, reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(method, reason).Inc()
}

// ProcessorCall records one logical processor call and its extra attempts.
func (m *PaymentMetrics) ProcessorCall(operation string, started time.Time, attempts int, err error) {
	if m == nil {
		return
	}
	m.ProcessorLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if attempts > 1 {
		m.ProcessorRetries.WithLabelValues(operation).Add(float64(attempts - 1))
	}
	if err != nil {
		m.ProcessorErrors.WithLabelValues(operation).Inc()
	}
}

func (m *PaymentMetrics) SignatureFailure(channel string) {
	if m == nil {
		return
	}
	m.SignatureFailed.WithLabelValues(channel).Inc()
}

// PollRun records a finished reconciliation pass.
func (m *PaymentMetrics) PollRun(started time.Time, checked, failed, expired int) {
	if m == nil {
		return
	}
	m.PollRuns.Inc()
	m.PollChecked.Add(float64(checked))
	m.PollErrors.Add(float64(failed))
	m.PollExpired.Add(float64(expired))
	m.PollDuration.Observe(time.Since(started).Seconds())
}

func (m *PaymentMetrics) EventPublished(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) Email(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.EmailSent.WithLabelValues(kind, outcome).Inc()
}
