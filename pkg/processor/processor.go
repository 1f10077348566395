// Package processor defines the hosted-checkout capability shared by the
// checkout initiator, the confirmation resolver and the refund manager.
package processor

import (
	"context"
	"fmt"

	"github.com/coralreef/resortpay/pkg/enums"
)

// Metadata keys embedded into every checkout session.
const (
	MetadataPaymentID    = "payment_id"
	MetadataContextToken = "context_token"
	MetadataRefundID     = "refund_id"
)

// LineItem is one priced line sent to the processor. UnitAmountCents is in
// the settlement currency.
type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// SessionRequest asks the processor for a hosted payment page.
type SessionRequest struct {
	Currency       enums.Currency
	CustomerEmail  string
	Description    string
	LineItems      []LineItem
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// Session is the processor's view of a hosted checkout.
type Session struct {
	ID               string
	RedirectURL      string
	Paid             bool
	PaymentRef       string
	AmountTotalCents int64
	Metadata         map[string]string
}

// RefundRequest moves money back for a settled payment.
type RefundRequest struct {
	PaymentRef     string
	AmountCents    int64
	Currency       enums.Currency
	Reason         enums.RefundReason
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundStatus is the processor-reported settlement state of a refund.
type RefundStatus string

const (
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is the processor's view of a refund.
type Refund struct {
	ID            string
	Status        RefundStatus
	AmountCents   int64
	FailureReason string
}

// Completed reports whether the refund settled immediately.
func (r *Refund) Completed() bool {
	return r != nil && r.Status == RefundStatusSucceeded
}

// Client is implemented by every supported payment processor. Implementations
// return *errors.Error values coded NOT_FOUND for unknown ids and
// UPSTREAM_ERROR for every other processor failure.
type Client interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	GetRefund(ctx context.Context, refundID string) (*Refund, error)
}

// RefundIdempotencyKey derives the processor idempotency key for a refund so
// retried calls collapse into one refund.
func RefundIdempotencyKey(refundID string, amountCents int64) string {
	return fmt.Sprintf("refund_%s_%d", refundID, amountCents)
}

// SessionIdempotencyKey derives the processor idempotency key for a checkout
// session.
func SessionIdempotencyKey(paymentID string) string {
	return fmt.Sprintf("checkout_%s", paymentID)
}
