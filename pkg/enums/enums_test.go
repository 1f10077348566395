package enums

import "testing"

func TestRefundStatusOpenAndTerminal(t *testing.T) {
	open := map[RefundStatus]bool{
		RefundStatusRequested:  true,
		RefundStatusProcessing: true,
		RefundStatusApproved:   true,
	}
	for _, status := range validRefundStatuses {
		if status.IsOpen() != open[status] {
			t.Fatalf("status %s: IsOpen = %v", status, status.IsOpen())
		}
		if status.IsTerminal() == open[status] {
			t.Fatalf("status %s: IsTerminal = %v", status, status.IsTerminal())
		}
	}
}

func TestPaymentStatusHasTransactionRef(t *testing.T) {
	cases := map[PaymentStatus]bool{
		PaymentStatusPending:  false,
		PaymentStatusPaid:     true,
		PaymentStatusRefunded: true,
		PaymentStatusFailed:   false,
	}
	for status, want := range cases {
		if got := status.HasTransactionRef(); got != want {
			t.Fatalf("status %s: HasTransactionRef = %v, want %v", status, got, want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" LKR ", CurrencyUSD)
	if err != nil || got != CurrencyLKR {
		t.Fatalf("expected lkr, got %q err=%v", got, err)
	}
	got, err = NormalizeCurrency("", CurrencyUSD)
	if err != nil || got != CurrencyUSD {
		t.Fatalf("expected fallback usd, got %q err=%v", got, err)
	}
	if _, err := NormalizeCurrency("eur", CurrencyUSD); err == nil {
		t.Fatal("expected unsupported currency to fail")
	}
}

func TestParseRefundDecision(t *testing.T) {
	if d, err := ParseRefundDecision("approve"); err != nil || d != RefundDecisionApprove {
		t.Fatalf("unexpected result %q %v", d, err)
	}
	if _, err := ParseRefundDecision("maybe"); err == nil {
		t.Fatal("expected invalid decision to fail")
	}
}

func TestParseRefundReason(t *testing.T) {
	if r, err := ParseRefundReason("duplicate_charge"); err != nil || r != RefundReasonDuplicateCharge {
		t.Fatalf("unexpected result %q %v", r, err)
	}
	if _, err := ParseRefundReason("changed_mind"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
}
