package enums

import "fmt"

// RefundDecision is the action an admin takes on a requested refund.
type RefundDecision string

const (
	RefundDecisionApprove RefundDecision = "approve"
	RefundDecisionDeny    RefundDecision = "deny"
)

// ParseRefundDecision converts raw input into a RefundDecision.
func ParseRefundDecision(value string) (RefundDecision, error) {
	switch RefundDecision(value) {
	case RefundDecisionApprove, RefundDecisionDeny:
		return RefundDecision(value), nil
	default:
		return "", fmt.Errorf("invalid refund decision %q", value)
	}
}
