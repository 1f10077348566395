package square

import (
	"strconv"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"

	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/processor"
)

func paymentLinkRequest(locationID, idempotencyKey string, req processor.SessionRequest) *sqcheckout.CreatePaymentLinkRequest {
	order := &sq.Order{
		LocationID:  locationID,
		ReferenceID: ptrString(req.Metadata[processor.MetadataPaymentID]),
	}
	for _, item := range req.LineItems {
		order.LineItems = append(order.LineItems, &sq.OrderLineItem{
			Name:           ptrString(item.Name),
			Quantity:       strconv.FormatInt(item.Quantity, 10),
			BasePriceMoney: moneyPtr(item.UnitAmountCents, string(req.Currency)),
		})
	}

	out := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Description:    ptrString(req.Description),
		Order:          order,
	}
	if redirect := strings.TrimSpace(req.SuccessURL); redirect != "" {
		out.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(redirect)}
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		out.PrePopulatedData = &sq.PrePopulatedData{BuyerEmail: ptrString(email)}
	}
	return out
}

func refundPaymentRequest(req processor.RefundRequest) *sq.RefundPaymentRequest {
	return &sq.RefundPaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		AmountMoney:    moneyPtr(req.AmountCents, string(req.Currency)),
		PaymentID:      ptrString(req.PaymentRef),
		Reason:         ptrString(refundReason(req.Reason)),
	}
}

func refundReason(reason enums.RefundReason) string {
	switch reason {
	case enums.RefundReasonAccidentalPayment:
		return "Accidental payment"
	case enums.RefundReasonServiceIssue:
		return "Service issue"
	case enums.RefundReasonDuplicateCharge:
		return "Duplicate charge"
	default:
		return "Requested by customer"
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
