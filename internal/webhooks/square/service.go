// Package squarewebhook turns Square notifications into payment confirmations
// and refund settlement updates.
package squarewebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coralreef/resortpay/internal/confirmation"
	"github.com/coralreef/resortpay/pkg/db/models"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/processor"
	squareclient "github.com/coralreef/resortpay/pkg/square"
)

const (
	eventPaymentUpdated = "payment.updated"
	eventRefundCreated  = "refund.created"
	eventRefundUpdated  = "refund.updated"

	paymentCompleted = "COMPLETED"
)

type confirmer interface {
	Confirm(ctx context.Context, sessionID, token string) (*confirmation.Confirmation, error)
}

type refundUpdater interface {
	ApplyProcessorUpdate(ctx context.Context, refundID *uuid.UUID, update processor.Refund) (*models.Refund, error)
}

type ServiceParams struct {
	Confirmations confirmer
	Refunds       refundUpdater
	Logger        *logger.Logger
}

type Service struct {
	confirmations confirmer
	refunds       refundUpdater
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Confirmations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "confirmation resolver required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund manager required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		confirmations: params.Confirmations,
		refunds:       params.Refunds,
		logg:          params.Logger,
	}, nil
}

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment,omitempty"`
	Refund  *SquareRefund  `json:"refund,omitempty"`
}

type SquarePayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type SquareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type SquareRefund struct {
	ID          string       `json:"id"`
	PaymentID   string       `json:"payment_id"`
	Status      string       `json:"status"`
	AmountMoney *SquareMoney `json:"amount_money,omitempty"`
}

// HandleEvent applies a verified Square notification. Payments are confirmed
// through their order, which doubles as the checkout session id.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.EventID, "event_type": event.Type})

	switch strings.ToLower(event.Type) {
	case eventPaymentUpdated:
		payment := event.Data.Object.Payment
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
		}
		return s.confirm(ctx, payment)
	case eventRefundCreated, eventRefundUpdated:
		refund := event.Data.Object.Refund
		if refund == nil || refund.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
		}
		return s.settleRefund(ctx, refund)
	default:
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, payment *SquarePayment) error {
	if !strings.EqualFold(payment.Status, paymentCompleted) {
		return nil
	}
	if payment.OrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id missing")
	}
	confirmed, err := s.confirmations.Confirm(ctx, payment.OrderID, "")
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("square order %s has no matching payment", payment.OrderID))
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithPaymentID(ctx, confirmed.ID.String()), fmt.Sprintf("payment %s via webhook", confirmed.Status))
	return nil
}

func (s *Service) settleRefund(ctx context.Context, refund *SquareRefund) error {
	var cents int64
	if refund.AmountMoney != nil {
		cents = refund.AmountMoney.Amount
	}
	update := squareclient.RefundFromStatus(refund.ID, refund.Status, cents)
	if update.Status == processor.RefundStatusPending {
		return nil
	}
	updated, err := s.refunds.ApplyProcessorUpdate(ctx, nil, *update)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("refund %s has no matching record", refund.ID))
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithRefundID(ctx, updated.ID.String()), fmt.Sprintf("refund is %s", updated.Status))
	return nil
}
