package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/processor"
)

// sessionIDTemplate is expanded by Stripe when redirecting to the success URL.
const sessionIDTemplate = "{CHECKOUT_SESSION_ID}"

var _ processor.Client = (*Client)(nil)

// CreateSession opens a hosted Checkout Session in payment mode.
func (c *Client) CreateSession(ctx context.Context, req processor.SessionRequest) (*processor.Session, error) {
	if len(req.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withSessionPlaceholder(req.SuccessURL)),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if paymentID := req.Metadata[processor.MetadataPaymentID]; paymentID != "" {
		params.ClientReferenceID = stripe.String(paymentID)
	}
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: req.Metadata,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.PaymentIntentData.Description = stripe.String(desc)
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(req.Currency)),
				UnitAmount: stripe.Int64(item.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := c.api.newSession(params)
	if err != nil {
		c.log(ctx, "create_session", nil, err)
		return nil, mapStripeError(err, "create checkout session")
	}
	c.log(ctx, "create_session", map[string]any{"session_id": sess.ID}, nil)
	return toSession(sess), nil
}

// GetSession retrieves the authoritative status of a Checkout Session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*processor.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := c.api.getSession(sessionID, params)
	if err != nil {
		c.log(ctx, "get_session", map[string]any{"session_id": sessionID}, err)
		return nil, mapStripeError(err, "get checkout session")
	}
	return toSession(sess), nil
}

// CreateRefund refunds a payment intent (or a legacy charge id).
func (c *Client) CreateRefund(ctx context.Context, req processor.RefundRequest) (*processor.Refund, error) {
	ref := strings.TrimSpace(req.PaymentRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.AmountCents),
		Reason: stripe.String(string(refundReason(req.Reason))),
	}
	if strings.HasPrefix(ref, "ch_") {
		params.Charge = stripe.String(ref)
	} else {
		params.PaymentIntent = stripe.String(ref)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	r, err := c.api.newRefund(params)
	if err != nil {
		c.log(ctx, "create_refund", map[string]any{"amount_cents": req.AmountCents}, err)
		return nil, mapStripeError(err, "create refund")
	}
	c.log(ctx, "create_refund", map[string]any{"refund_ref": r.ID, "status": string(r.Status)}, nil)
	return toRefund(r), nil
}

// GetRefund polls a refund's settlement state.
func (c *Client) GetRefund(ctx context.Context, refundID string) (*processor.Refund, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	params := &stripe.RefundParams{}
	params.Context = ctx

	r, err := c.api.getRefund(refundID, params)
	if err != nil {
		c.log(ctx, "get_refund", map[string]any{"refund_ref": refundID}, err)
		return nil, mapStripeError(err, "get refund")
	}
	return toRefund(r), nil
}

func toSession(sess *stripe.CheckoutSession) *processor.Session {
	if sess == nil {
		return nil
	}
	out := &processor.Session{
		ID:               sess.ID,
		RedirectURL:      sess.URL,
		Paid:             sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotalCents: sess.AmountTotal,
		Metadata:         sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	return out
}

// ToRefund maps a Stripe refund object, including those decoded from webhook
// payloads.
func ToRefund(r *stripe.Refund) *processor.Refund {
	return toRefund(r)
}

func toRefund(r *stripe.Refund) *processor.Refund {
	if r == nil {
		return nil
	}
	out := &processor.Refund{
		ID:          r.ID,
		AmountCents: r.Amount,
	}
	switch r.Status {
	case stripe.RefundStatusSucceeded:
		out.Status = processor.RefundStatusSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		out.Status = processor.RefundStatusFailed
		out.FailureReason = string(r.FailureReason)
		if out.FailureReason == "" {
			out.FailureReason = string(r.Status)
		}
	default:
		out.Status = processor.RefundStatusPending
	}
	return out
}

func refundReason(reason enums.RefundReason) stripe.RefundReason {
	if reason == enums.RefundReasonDuplicateCharge {
		return stripe.RefundReasonDuplicate
	}
	return stripe.RefundReasonRequestedByCustomer
}

func withSessionPlaceholder(rawURL string) string {
	if rawURL == "" || strings.Contains(rawURL, sessionIDTemplate) {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "session_id=" + sessionIDTemplate
}

func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("stripe %s: resource not found", op))
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("stripe %s failed", op)).
			WithDetails(map[string]any{"stripe_code": string(stripeErr.Code)})
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("stripe %s failed", op))
}
