// Package stripewebhook turns Stripe events into payment confirmations and
// refund settlement updates.
package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/coralreef/resortpay/internal/confirmation"
	"github.com/coralreef/resortpay/pkg/db/models"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/processor"
	stripeclient "github.com/coralreef/resortpay/pkg/stripe"
)

const (
	eventRefundUpdated stripe.EventType = "refund.updated"
	eventRefundFailed  stripe.EventType = "refund.failed"
)

type confirmer interface {
	Confirm(ctx context.Context, sessionID, token string) (*confirmation.Confirmation, error)
	Abandon(ctx context.Context, sessionID string, metadata map[string]string) (*confirmation.Confirmation, error)
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

// HandleEvent applies a verified Stripe event. Events for records this
// service does not know are acknowledged and skipped.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.confirm(ctx, &sess)
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.abandon(ctx, &sess)
	case stripe.EventTypeChargeRefundUpdated, eventRefundUpdated, eventRefundFailed:
		var refund stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode refund event")
		}
		return s.settleRefund(ctx, &refund)
	default:
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logg.Debug(ctx, fmt.Sprintf("checkout session %s not paid yet", sess.ID))
		return nil
	}
	token := ""
	if sess.Metadata != nil {
		token = sess.Metadata[processor.MetadataContextToken]
	}
	confirmed, err := s.confirmations.Confirm(ctx, sess.ID, token)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("checkout session %s has no matching payment", sess.ID))
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithPaymentID(ctx, confirmed.ID.String()), fmt.Sprintf("payment %s via webhook", confirmed.Status))
	return nil
}

func (s *Service) abandon(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	abandoned, err := s.confirmations.Abandon(ctx, sess.ID, sess.Metadata)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("checkout session %s has no matching payment", sess.ID))
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithPaymentID(ctx, abandoned.ID.String()), fmt.Sprintf("payment %s after session ended unpaid", abandoned.Status))
	return nil
}

func (s *Service) settleRefund(ctx context.Context, refund *stripe.Refund) error {
	update := stripeclient.ToRefund(refund)
	if update == nil || update.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund id missing")
	}

	var refundID *uuid.UUID
	if raw := strings.TrimSpace(refund.Metadata[processor.MetadataRefundID]); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			refundID = &parsed
		}
	}

	updated, err := s.refunds.ApplyProcessorUpdate(ctx, refundID, *update)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("refund %s has no matching record", update.ID))
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithRefundID(ctx, updated.ID.String()), fmt.Sprintf("refund is %s", updated.Status))
	return nil
}
