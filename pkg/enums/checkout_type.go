package enums

import "fmt"

// CheckoutType identifies which flow produced a checkout context.
type CheckoutType string

const (
	// CheckoutTypeBooking carries a booking payload forwarded after payment.
	CheckoutTypeBooking CheckoutType = "booking"
	// CheckoutTypeCart carries cart line items surfaced after payment.
	CheckoutTypeCart    CheckoutType = "cart"
)

var validCheckoutTypes = []CheckoutType{
	CheckoutTypeBooking,
	CheckoutTypeCart,
}

// String implements fmt.Stringer.
func (c CheckoutType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutType.
func (c CheckoutType) IsValid() bool {
	for _, candidate := range validCheckoutTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutType converts raw input into a CheckoutType.
func ParseCheckoutType(value string) (CheckoutType, error) {
	for _, candidate := range validCheckoutTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout type %q", value)
}
