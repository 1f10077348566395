package enums

import "fmt"

// RefundStatus tracks a refund through request, decision and settlement.
type RefundStatus string

const (
	RefundStatusRequested  RefundStatus = "requested"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusApproved   RefundStatus = "approved"
	RefundStatusDenied     RefundStatus = "denied"
	RefundStatusRefunded   RefundStatus = "refunded"
	RefundStatusFailed     RefundStatus = "failed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusRequested,
	RefundStatusProcessing,
	RefundStatusApproved,
	RefundStatusDenied,
	RefundStatusRefunded,
	RefundStatusFailed,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}

// OpenRefundStatuses lists the statuses that block another refund request for
// the same payment.
func OpenRefundStatuses() []RefundStatus {
	return []RefundStatus{RefundStatusRequested, RefundStatusProcessing, RefundStatusApproved}
}

// IsOpen reports whether the refund still occupies its payment's open slot.
func (r RefundStatus) IsOpen() bool {
	for _, candidate := range OpenRefundStatuses() {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (r RefundStatus) IsTerminal() bool {
	return r == RefundStatusDenied || r == RefundStatusRefunded || r == RefundStatusFailed
}
