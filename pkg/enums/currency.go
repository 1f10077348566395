package enums

import (
	"fmt"
	"strings"
)

// Currency represents supported denominations for checkout totals.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyLKR Currency = "lkr"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyLKR,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Currency.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}

// NormalizeCurrency lowercases and trims raw input before parsing. Empty input
// resolves to fallback.
func NormalizeCurrency(value string, fallback Currency) (Currency, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return fallback, nil
	}
	return ParseCurrency(trimmed)
}
