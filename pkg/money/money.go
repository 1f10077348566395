// Package money holds decimal helpers for settlement amounts.
package money

import (
	"fmt"

	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/shopspring/decimal"
)

// Places is the precision of every stored and charged amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round applies half-up rounding to two decimal places.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Places)
}

// ToCents converts an amount into minor units, rounding half-up first.
func ToCents(amount decimal.Decimal) int64 {
	return Round(amount).Mul(hundred).IntPart()
}

// FromCents converts minor units back into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// IsValidAmount reports whether amount is positive and carries at most two
// decimal places.
func IsValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(Round(amount))
}

// Conversion maps amounts from a source currency into the settlement currency.
type Conversion struct {
	From       enums.Currency
	Settlement enums.Currency
	rate       decimal.Decimal
}

// NewConversion builds the conversion for a (from, settlement) pair. When the
// pair is already in settlement currency the rate is ignored.
func NewConversion(from, settlement enums.Currency, rate decimal.Decimal) (Conversion, error) {
	if !from.IsValid() {
		return Conversion{}, fmt.Errorf("unsupported currency %q", from)
	}
	if !settlement.IsValid() {
		return Conversion{}, fmt.Errorf("unsupported settlement currency %q", settlement)
	}
	if from == settlement {
		return Conversion{From: from, Settlement: settlement, rate: decimal.NewFromInt(1)}, nil
	}
	if !rate.IsPositive() {
		return Conversion{}, fmt.Errorf("exchange rate for %s->%s must be positive", from, settlement)
	}
	return Conversion{From: from, Settlement: settlement, rate: rate}, nil
}

// IsIdentity reports whether no conversion happens.
func (c Conversion) IsIdentity() bool {
	return c.From == c.Settlement
}

// Rate returns the multiplier applied by Apply.
func (c Conversion) Rate() decimal.Decimal {
	return c.rate
}

// Apply converts amount into the settlement currency and rounds it.
func (c Conversion) Apply(amount decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(c.rate))
}
