package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/money"
	"github.com/coralreef/resortpay/pkg/processor"
)

const maxPackageItems = 3

// cartQuote is a priced cart in settlement currency. Total is converted from
// the summed source amount, while each line's unit price is converted on its
// own, so Total need not equal the sum of the processor lines.
type cartQuote struct {
	Conversion money.Conversion
	Total      decimal.Decimal
	Lines      []processor.LineItem
	Snapshot   models.CartSnapshot
}

func priceCart(items []CartItemInput, conversion money.Conversion) (*cartQuote, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}

	sourceTotal := decimal.Zero
	lines := make([]processor.LineItem, 0, len(items))
	stored := make([]models.CartLineItem, 0, len(items))
	for i, item := range items {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d: product name is required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d: quantity must be positive", i))
		}
		if !item.UnitPrice.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d: unit price must be positive", i))
		}

		sourceTotal = sourceTotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))

		unitCents := money.ToCents(conversion.Apply(item.UnitPrice))
		if unitCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %d: unit price rounds to zero after conversion", i))
		}
		lines = append(lines, processor.LineItem{
			Name:            name,
			UnitAmountCents: unitCents,
			Quantity:        item.Quantity,
		})
		stored = append(stored, models.CartLineItem{
			ProductID:   strings.TrimSpace(item.ProductID),
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	total := conversion.Apply(sourceTotal)
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart total must be positive")
	}

	return &cartQuote{
		Conversion: conversion,
		Total:      total,
		Lines:      lines,
		Snapshot: models.CartSnapshot{
			Currency:     conversion.From,
			ExchangeRate: conversion.Rate(),
			Items:        stored,
		},
	}, nil
}

// cartPackage describes a cart for the payment's package field, e.g.
// "Spa day x2, Sunset dinner +1 more".
func cartPackage(items []CartItemInput) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		label := strings.TrimSpace(item.ProductName)
		if item.Quantity > 1 {
			label = fmt.Sprintf("%s x%d", label, item.Quantity)
		}
		names = append(names, label)
	}
	if len(names) <= maxPackageItems {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(names[:maxPackageItems], ", "), len(names)-maxPackageItems)
}

func resolveConversion(from enums.Currency, settlement enums.Currency, requested *decimal.Decimal, fallback decimal.Decimal) (money.Conversion, error) {
	rate := fallback
	if requested != nil {
		rate = *requested
	}
	conversion, err := money.NewConversion(from, settlement, rate)
	if err != nil {
		return money.Conversion{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency or exchange rate")
	}
	return conversion, nil
}
