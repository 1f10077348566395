package enums

import "fmt"

// CheckoutContextStatus is the one-way state of a checkout handoff token.
type CheckoutContextStatus string

const (
	CheckoutContextStatusInit CheckoutContextStatus = "init"
	CheckoutContextStatusPaid CheckoutContextStatus = "paid"
)

var validCheckoutContextStatuses = []CheckoutContextStatus{
	CheckoutContextStatusInit,
	CheckoutContextStatusPaid,
}

// String implements fmt.Stringer.
func (c CheckoutContextStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutContextStatus.
func (c CheckoutContextStatus) IsValid() bool {
	for _, candidate := range validCheckoutContextStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutContextStatus converts raw input into a CheckoutContextStatus.
func ParseCheckoutContextStatus(value string) (CheckoutContextStatus, error) {
	for _, candidate := range validCheckoutContextStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout context status %q", value)
}
