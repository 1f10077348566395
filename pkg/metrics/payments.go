package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the payment counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PaymentMetrics records checkout, confirmation, booking forward and refund
// activity.
type PaymentMetrics struct {
	checkoutSessions  *prometheus.CounterVec
	confirmations     *prometheus.CounterVec
	bookingForwards   *prometheus.CounterVec
	refundTransitions *prometheus.CounterVec
	processorLatency  *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkoutSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout sessions requested from the processor.",
	}, []string{"type", "outcome"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirmations_total",
		Help: "Checkout confirmations by resulting payment status.",
	}, []string{"status"})
	bookingForwards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_forwards_total",
		Help: "Booking payloads forwarded to the booking system.",
	}, []string{"outcome"})
	refundTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_transitions_total",
		Help: "Refund state transitions by target status.",
	}, []string{"status"})
	processorLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_call_duration_seconds",
		Help:    "Duration of payment processor calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(checkoutSessions, confirmations, bookingForwards, refundTransitions, processorLatency)
	return &PaymentMetrics{
		checkoutSessions:  checkoutSessions,
		confirmations:     confirmations,
		bookingForwards:   bookingForwards,
		refundTransitions: refundTransitions,
		processorLatency:  processorLatency,
	}
}

// IncCheckoutSession counts a checkout session attempt for the checkout type.
func (m *PaymentMetrics) IncCheckoutSession(checkoutType, outcome string) {
	if m == nil || m.checkoutSessions == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(normalizeLabel(checkoutType), normalizeLabel(outcome)).Inc()
}

// IncConfirmation counts a resolved confirmation.
func (m *PaymentMetrics) IncConfirmation(status string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncBookingForward counts a booking forward attempt.
func (m *PaymentMetrics) IncBookingForward(outcome string) {
	if m == nil || m.bookingForwards == nil {
		return
	}
	m.bookingForwards.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRefundTransition counts a refund entering status.
func (m *PaymentMetrics) IncRefundTransition(status string) {
	if m == nil || m.refundTransitions == nil {
		return
	}
	m.refundTransitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveProcessorCall records how long a processor operation took.
func (m *PaymentMetrics) ObserveProcessorCall(operation string, duration time.Duration) {
	if m == nil || m.processorLatency == nil {
		return
	}
	m.processorLatency.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
