package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPaymentMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPaymentMetrics(reg)
	metrics.IncCheckoutSession("booking", OutcomeSuccess)
	metrics.IncConfirmation("paid")
	metrics.IncConfirmation("paid")
	metrics.IncBookingForward(OutcomeFailure)
	metrics.IncRefundTransition("processing")
	metrics.ObserveProcessorCall("create_refund", 150*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name  string
		label string
		value string
		want  float64
	}{
		{"checkout_sessions_total", "type", "booking", 1},
		{"checkout_confirmations_total", "status", "paid", 2},
		{"booking_forwards_total", "outcome", OutcomeFailure, 1},
		{"refund_transitions_total", "status", "processing", 1},
	}
	for _, check := range checks {
		got, err := fetchCounterValue(mfs, check.name, check.label, check.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", check.name, err)
		}
		if got != check.want {
			t.Fatalf("%s expected %f, got %f", check.name, check.want, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "processor_call_duration_seconds", "operation", "create_refund"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestPaymentMetricsNilSafe(t *testing.T) {
	var nilMetrics *PaymentMetrics
	nilMetrics.IncConfirmation("paid")

	unregistered := NewPaymentMetrics(nil)
	unregistered.IncBookingForward(OutcomeSuccess)
	unregistered.ObserveProcessorCall("", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
