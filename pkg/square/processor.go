package square

import (
	"context"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/processor"
)

var _ processor.Client = (*Client)(nil)

// CreateSession creates a Square payment link. The returned session id is
// the link's order id, which Square appends to the redirect URL as orderId.
func (c *Client) CreateSession(ctx context.Context, req processor.SessionRequest) (*processor.Session, error) {
	if len(req.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	key := idempotencyKey("payment_link", req.IdempotencyKey)

	started := time.Now()
	resp, err := c.api.createPaymentLink(ctx, paymentLinkRequest(c.locationID, key, req))
	fields := map[string]any{
		"location_id": c.locationID,
		"line_items":  len(req.LineItems),
	}
	if err != nil {
		c.trace(ctx, "create_payment_link", started, fields, err)
		return nil, translateError("create payment link", err)
	}

	link := resp.GetPaymentLink()
	if link == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "square returned no payment link")
	}
	orderID := deref(link.GetOrderID())
	fields["order_id"] = orderID
	c.trace(ctx, "create_payment_link", started, fields, nil)

	return &processor.Session{
		ID:          orderID,
		RedirectURL: deref(link.GetURL()),
		Metadata:    map[string]string{processor.MetadataPaymentID: req.Metadata[processor.MetadataPaymentID]},
	}, nil
}

// GetSession reads the order behind a payment link.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*processor.Session, error) {
	orderID := strings.TrimSpace(sessionID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	started := time.Now()
	resp, err := c.api.getOrder(ctx, &sq.GetOrdersRequest{OrderID: orderID})
	c.trace(ctx, "get_order", started, map[string]any{"order_id": orderID}, err)
	if err != nil {
		return nil, translateError("get order", err)
	}
	order := resp.GetOrder()
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square order not found")
	}
	return sessionFromOrder(orderID, order), nil
}

// CreateRefund refunds a completed Square payment.
func (c *Client) CreateRefund(ctx context.Context, req processor.RefundRequest) (*processor.Refund, error) {
	if strings.TrimSpace(req.PaymentRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	req.IdempotencyKey = idempotencyKey("refund", req.IdempotencyKey)

	started := time.Now()
	resp, err := c.api.refundPayment(ctx, refundPaymentRequest(req))
	fields := map[string]any{"payment_ref": req.PaymentRef, "amount_cents": req.AmountCents}
	if err != nil {
		c.trace(ctx, "refund_payment", started, fields, err)
		return nil, translateError("refund payment", err)
	}

	out := toRefund(resp.GetRefund())
	if out == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "square returned no refund")
	}
	fields["refund_ref"] = out.ID
	fields["refund_status"] = string(out.Status)
	c.trace(ctx, "refund_payment", started, fields, nil)
	return out, nil
}

// GetRefund polls a Square payment refund.
func (c *Client) GetRefund(ctx context.Context, refundID string) (*processor.Refund, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	started := time.Now()
	resp, err := c.api.getRefund(ctx, &sq.GetRefundsRequest{RefundID: refundID})
	c.trace(ctx, "get_refund", started, map[string]any{"refund_ref": refundID}, err)
	if err != nil {
		return nil, translateError("get refund", err)
	}
	out := toRefund(resp.GetRefund())
	if out == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "square refund not found")
	}
	return out, nil
}

func sessionFromOrder(orderID string, order *sq.Order) *processor.Session {
	out := &processor.Session{
		ID:       orderID,
		Metadata: map[string]string{},
	}
	if ref := deref(order.GetReferenceID()); ref != "" {
		out.Metadata[processor.MetadataPaymentID] = ref
	}
	if total := order.GetTotalMoney(); total != nil && total.GetAmount() != nil {
		out.AmountTotalCents = *total.GetAmount()
	}
	state := order.GetState()
	completed := state != nil && *state == sq.OrderStateCompleted
	for _, tender := range order.GetTenders() {
		if tender == nil {
			continue
		}
		if paymentID := deref(tender.GetPaymentID()); paymentID != "" {
			out.PaymentRef = paymentID
			break
		}
	}
	out.Paid = completed && out.PaymentRef != ""
	return out
}

func toRefund(refund *sq.PaymentRefund) *processor.Refund {
	if refund == nil {
		return nil
	}
	var cents int64
	if money := refund.GetAmountMoney(); money != nil && money.GetAmount() != nil {
		cents = *money.GetAmount()
	}
	return RefundFromStatus(refund.ID, deref(refund.GetStatus()), cents)
}

// RefundFromStatus maps a Square refund status, as found on API responses and
// webhook payloads, onto the processor refund view.
func RefundFromStatus(id, status string, amountCents int64) *processor.Refund {
	out := &processor.Refund{ID: id, AmountCents: amountCents}
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		out.Status = processor.RefundStatusSucceeded
	case "REJECTED", "FAILED":
		out.Status = processor.RefundStatusFailed
		out.FailureReason = strings.ToLower(strings.TrimSpace(status))
	default:
		out.Status = processor.RefundStatusPending
	}
	return out
}
