package enums

import "fmt"

// ForwardState records whether a booking payload reached the booking system.
type ForwardState string

const (
	ForwardStateNone      ForwardState = "none"
	ForwardStateForwarded ForwardState = "forwarded"
	ForwardStateFailed    ForwardState = "failed"
)

var validForwardStates = []ForwardState{
	ForwardStateNone,
	ForwardStateForwarded,
	ForwardStateFailed,
}

// String implements fmt.Stringer.
func (f ForwardState) String() string {
	return string(f)
}

// IsValid reports whether the value is a known ForwardState.
func (f ForwardState) IsValid() bool {
	for _, candidate := range validForwardStates {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseForwardState converts raw input into a ForwardState.
func ParseForwardState(value string) (ForwardState, error) {
	for _, candidate := range validForwardStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid forward state %q", value)
}
