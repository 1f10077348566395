// Package refunds drives refund requests through the refund state machine:
// requested -> processing -> refunded | approved, requested -> denied,
// processing -> failed, and approved -> refunded | failed on reconciliation.
package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/metrics"
	"github.com/coralreef/resortpay/pkg/money"
	"github.com/coralreef/resortpay/pkg/pagination"
	"github.com/coralreef/resortpay/pkg/processor"
)

// DefaultPolicyWindowDays applies when no window is configured.
const DefaultPolicyWindowDays = 30

const (
	reasonPaymentNotPaid = "payment_not_paid"
	maxNoteLength        = 1000
)

// Manager is the refund lifecycle entry point.
type Manager interface {
	Request(ctx context.Context, actor auth.Actor, input RequestInput) (*models.Refund, error)
	Decide(ctx context.Context, actor auth.Actor, input DecideInput) (*models.Refund, error)
	Reconcile(ctx context.Context, actor auth.Actor, refundID uuid.UUID) (*models.Refund, error)
	ApplyProcessorUpdate(ctx context.Context, refundID *uuid.UUID, update processor.Refund) (*models.Refund, error)
	ListForPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) ([]models.Refund, error)
	List(ctx context.Context, actor auth.Actor, status enums.RefundStatus, page pagination.Params) ([]models.Refund, error)
}

// RequestInput opens a refund. A nil Amount requests the full payment amount.
type RequestInput struct {
	PaymentID uuid.UUID
	Amount    *decimal.Decimal
	Reason    enums.RefundReason
	Note      string
}

// DecideInput approves or denies a requested refund. Amount overrides the
// requested amount on approval.
type DecideInput struct {
	RefundID uuid.UUID
	Decision enums.RefundDecision
	Amount   *decimal.Decimal
}

// Config tunes the manager.
type Config struct {
	PolicyWindowDays int
	ProcessorTimeout time.Duration
	Currency         enums.Currency
}

type manager struct {
	refunds   Repository
	payments  ledger.Repository
	processor processor.Client
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewManager wires the refund lifecycle manager.
func NewManager(
	refunds Repository,
	payments ledger.Repository,
	client processor.Client,
	recorder *metrics.PaymentMetrics,
	logg *logger.Logger,
	cfg Config,
) (Manager, error) {
	if refunds == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.PolicyWindowDays <= 0 {
		cfg.PolicyWindowDays = DefaultPolicyWindowDays
	}
	if cfg.Currency == "" {
		cfg.Currency = enums.CurrencyUSD
	}
	return &manager{
		refunds:   refunds,
		payments:  payments,
		processor: client,
		metrics:   recorder,
		logg:      logg,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (m *manager) Request(ctx context.Context, actor auth.Actor, input RequestInput) (*models.Refund, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	reason := input.Reason
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason is required")
	}
	if !reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund reason %q", input.Reason))
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > maxNoteLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is too long")
	}
	ctx = m.logg.WithPaymentID(ctx, input.PaymentID.String())

	payment, err := m.payments.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	if !actor.IsAdmin() && !actor.Owns(payment.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the payer or an admin may request a refund")
	}
	if payment.Status != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotAllowed, "payment is not eligible for a refund").
			WithDetails(map[string]any{"reason": reasonPaymentNotPaid, "status": payment.Status})
	}

	window := m.cfg.PolicyWindowDays
	if m.now().Sub(payment.PaymentDate) > time.Duration(window)*24*time.Hour {
		return nil, pkgerrors.New(pkgerrors.CodeRefundWindowExpired, "refund policy window has expired").
			WithDetails(map[string]any{"policy_window_days": window})
	}

	if _, err := m.refunds.FindOpenByPayment(ctx, payment.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open refund already exists for this payment")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open refunds")
	}

	amount, err := m.refundableAmount(ctx, payment, input.Amount)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		ID:               uuid.New(),
		PaymentID:        payment.ID,
		RequesterEmail:   auth.NormalizeEmail(actor.Email),
		Amount:           amount,
		Reason:           reason,
		Status:           enums.RefundStatusRequested,
		PolicyWindowDays: window,
	}
	if note != "" {
		refund.Note = &note
	}
	if err := m.refunds.Create(ctx, refund); err != nil {
		if errors.Is(err, ErrOpenRefundExists) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an open refund already exists for this payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
	}

	m.metrics.IncRefundTransition(string(enums.RefundStatusRequested))
	m.logg.Info(m.logg.WithRefundID(ctx, refund.ID.String()), "refund requested")
	return refund, nil
}

// refundableAmount validates the requested amount against what is left of the
// payment after earlier refunds. A nil request means everything left.
func (m *manager) refundableAmount(ctx context.Context, payment *models.Payment, requested *decimal.Decimal) (decimal.Decimal, error) {
	remaining, err := m.remaining(ctx, payment, uuid.Nil)
	if err != nil {
		return decimal.Zero, err
	}
	if requested == nil {
		if !remaining.IsPositive() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "payment has been fully refunded")
		}
		return remaining, nil
	}
	return validateAmount(*requested, payment.Amount, remaining)
}

func validateAmount(amount, paymentAmount, remaining decimal.Decimal) (decimal.Decimal, error) {
	if !money.IsValidAmount(amount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive with at most two decimal places")
	}
	if amount.GreaterThan(paymentAmount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds payment amount")
	}
	if amount.GreaterThan(remaining) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the refundable balance").
			WithDetails(map[string]any{"refundable": remaining.StringFixed(money.Places)})
	}
	return amount, nil
}

// remaining is the payment amount minus settled and settling refunds, other
// than exclude.
func (m *manager) remaining(ctx context.Context, payment *models.Payment, exclude uuid.UUID) (decimal.Decimal, error) {
	existing, err := m.refunds.ListByPayment(ctx, payment.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refunds")
	}
	left := payment.Amount
	for _, refund := range existing {
		if refund.ID == exclude {
			continue
		}
		if refund.Status == enums.RefundStatusRefunded || refund.Status == enums.RefundStatusApproved {
			left = left.Sub(refund.Amount)
		}
	}
	return left, nil
}

func (m *manager) Decide(ctx context.Context, actor auth.Actor, input DecideInput) (*models.Refund, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	decision, err := enums.ParseRefundDecision(string(input.Decision))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "action must be approve or deny")
	}
	ctx = m.logg.WithRefundID(ctx, input.RefundID.String())
	ctx = m.logg.WithActor(ctx, actor.Email, string(actor.Role))

	refund, err := m.loadRefund(ctx, input.RefundID)
	if err != nil {
		return nil, err
	}
	if refund.Status != enums.RefundStatusRequested {
		return nil, invalidState(refund.Status)
	}

	if decision == enums.RefundDecisionDeny {
		return m.deny(ctx, actor, refund)
	}
	return m.approve(ctx, actor, refund, input.Amount)
}

func (m *manager) deny(ctx context.Context, actor auth.Actor, refund *models.Refund) (*models.Refund, error) {
	now := m.now()
	ok, err := m.refunds.Apply(ctx, refund.ID, Transition{
		From: enums.RefundStatusRequested,
		To:   enums.RefundStatusDenied,
		Fields: map[string]any{
			"decided_by": actor.Email,
			"decided_at": now,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deny refund")
	}
	if !ok {
		return nil, m.lostRace(ctx, refund.ID)
	}
	m.metrics.IncRefundTransition(string(enums.RefundStatusDenied))
	m.logg.Info(ctx, "refund denied")
	return m.loadRefund(ctx, refund.ID)
}

func (m *manager) approve(ctx context.Context, actor auth.Actor, refund *models.Refund, override *decimal.Decimal) (*models.Refund, error) {
	payment, err := m.payments.FindByID(ctx, refund.PaymentID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	remaining, err := m.remaining(ctx, payment, refund.ID)
	if err != nil {
		return nil, err
	}
	amount := refund.Amount
	if override != nil {
		amount = *override
	}
	if amount, err = validateAmount(amount, payment.Amount, remaining); err != nil {
		return nil, err
	}
	if payment.TransactionRef == nil || strings.TrimSpace(*payment.TransactionRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment has no processor transaction to refund")
	}

	decidedAt := m.now()
	ok, err := m.refunds.Apply(ctx, refund.ID, Transition{
		From: enums.RefundStatusRequested,
		To:   enums.RefundStatusProcessing,
		Fields: map[string]any{
			"amount":     amount,
			"decided_by": actor.Email,
			"decided_at": decidedAt,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark refund processing")
	}
	if !ok {
		return nil, m.lostRace(ctx, refund.ID)
	}
	m.metrics.IncRefundTransition(string(enums.RefundStatusProcessing))

	cents := money.ToCents(amount)
	result, callErr := m.createProcessorRefund(ctx, processor.RefundRequest{
		PaymentRef:     *payment.TransactionRef,
		AmountCents:    cents,
		Currency:       payment.Currency,
		Reason:         refund.Reason,
		IdempotencyKey: processor.RefundIdempotencyKey(refund.ID.String(), cents),
		Metadata: map[string]string{
			processor.MetadataRefundID:  refund.ID.String(),
			processor.MetadataPaymentID: payment.ID.String(),
		},
	})
	if callErr == nil && result.Status == processor.RefundStatusFailed {
		callErr = pkgerrors.New(pkgerrors.CodeUpstream, "processor rejected the refund")
	}
	if callErr != nil {
		reason := failureReason(callErr, result)
		fields := map[string]any{"failure_reason": reason}
		if result != nil && result.ID != "" {
			fields["processor_ref"] = result.ID
		}
		if _, err := m.refunds.Apply(context.WithoutCancel(ctx), refund.ID, Transition{
			From:   enums.RefundStatusProcessing,
			To:     enums.RefundStatusFailed,
			Fields: fields,
		}); err != nil {
			m.logg.Error(ctx, "record refund failure", err)
		}
		m.metrics.IncRefundTransition(string(enums.RefundStatusFailed))
		m.logg.Error(ctx, "processor refund failed", callErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, callErr, "refund processing failed").
			WithDetails(map[string]any{"refund_id": refund.ID.String(), "status": enums.RefundStatusFailed})
	}

	target := enums.RefundStatusApproved
	if result.Completed() {
		target = enums.RefundStatusRefunded
	}
	ok, err = m.refunds.Apply(context.WithoutCancel(ctx), refund.ID, Transition{
		From:   enums.RefundStatusProcessing,
		To:     target,
		Fields: map[string]any{"processor_ref": result.ID},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund result")
	}
	if ok {
		m.metrics.IncRefundTransition(string(target))
	}
	m.logg.Info(m.logg.WithField(ctx, "processor_ref", result.ID), fmt.Sprintf("refund %s", target))

	if target == enums.RefundStatusRefunded {
		if err := m.settlePayment(ctx, payment); err != nil {
			return nil, err
		}
	}
	return m.loadRefund(ctx, refund.ID)
}

func (m *manager) createProcessorRefund(ctx context.Context, req processor.RefundRequest) (*processor.Refund, error) {
	callCtx := ctx
	if m.cfg.ProcessorTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.cfg.ProcessorTimeout)
		defer cancel()
	}
	started := time.Now()
	result, err := m.processor.CreateRefund(callCtx, req)
	m.metrics.ObserveProcessorCall("create_refund", time.Since(started))
	if err == nil && result == nil {
		err = pkgerrors.New(pkgerrors.CodeUpstream, "processor returned no refund")
	}
	return result, err
}

// settlePayment marks the payment refunded once its refunds cover the full
// amount.
func (m *manager) settlePayment(ctx context.Context, payment *models.Payment) error {
	remaining, err := m.remaining(ctx, payment, uuid.Nil)
	if err != nil {
		return err
	}
	if remaining.IsPositive() {
		return nil
	}
	updated, err := m.payments.MarkRefunded(context.WithoutCancel(ctx), payment.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
	}
	if updated {
		m.logg.Info(ctx, "payment fully refunded")
	}
	return nil
}

func (m *manager) Reconcile(ctx context.Context, actor auth.Actor, refundID uuid.UUID) (*models.Refund, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	ctx = m.logg.WithRefundID(ctx, refundID.String())
	refund, err := m.loadRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	hasRef := refund.ProcessorRef != nil && *refund.ProcessorRef != ""
	switch refund.Status {
	case enums.RefundStatusApproved, enums.RefundStatusProcessing:
	case enums.RefundStatusFailed:
		// a failed refund with a processor reference may still settle
		if !hasRef {
			return nil, invalidState(refund.Status)
		}
	default:
		return nil, invalidState(refund.Status)
	}
	if !hasRef {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "refund has no processor reference to reconcile")
	}

	callCtx := ctx
	if m.cfg.ProcessorTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.cfg.ProcessorTimeout)
		defer cancel()
	}
	started := time.Now()
	update, err := m.processor.GetRefund(callCtx, *refund.ProcessorRef)
	m.metrics.ObserveProcessorCall("get_refund", time.Since(started))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "poll processor refund")
	}
	return m.advance(ctx, refund, *update)
}

// ApplyProcessorUpdate advances a settling refund from a processor event.
// The refund is located by refundID when known, else by the processor
// reference. A failed refund only moves on a success report, which happens
// when the processor settled a call that timed out locally.
func (m *manager) ApplyProcessorUpdate(ctx context.Context, refundID *uuid.UUID, update processor.Refund) (*models.Refund, error) {
	var (
		refund *models.Refund
		err    error
	)
	if refundID != nil && *refundID != uuid.Nil {
		refund, err = m.refunds.FindByID(ctx, *refundID)
	} else {
		refund, err = m.refunds.FindByProcessorRef(ctx, update.ID)
	}
	if err != nil {
		return nil, mapRefundLookup(err)
	}
	ctx = m.logg.WithRefundID(ctx, refund.ID.String())
	switch refund.Status {
	case enums.RefundStatusApproved, enums.RefundStatusProcessing, enums.RefundStatusFailed:
		return m.advance(ctx, refund, update)
	default:
		return refund, nil
	}
}

func (m *manager) advance(ctx context.Context, refund *models.Refund, update processor.Refund) (*models.Refund, error) {
	var target enums.RefundStatus
	fields := map[string]any{}
	switch update.Status {
	case processor.RefundStatusSucceeded:
		target = enums.RefundStatusRefunded
	case processor.RefundStatusFailed:
		target = enums.RefundStatusFailed
		fields["failure_reason"] = nonEmpty(update.FailureReason, "processor reported failure")
	default:
		return refund, nil
	}
	lateSuccess := refund.Status == enums.RefundStatusFailed
	if lateSuccess {
		if target != enums.RefundStatusRefunded {
			return refund, nil
		}
		fields["failure_reason"] = nil
	}
	if update.ID != "" {
		fields["processor_ref"] = update.ID
	}

	ok, err := m.refunds.Apply(ctx, refund.ID, Transition{From: refund.Status, To: target, Fields: fields})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile refund")
	}
	if ok {
		m.metrics.IncRefundTransition(string(target))
		if lateSuccess {
			m.logg.Warn(m.logg.WithField(ctx, "processor_ref", update.ID), "processor settled a refund recorded as failed")
		} else {
			m.logg.Info(ctx, fmt.Sprintf("refund reconciled to %s", target))
		}
		if target == enums.RefundStatusRefunded {
			payment, err := m.payments.FindByID(ctx, refund.PaymentID)
			if err != nil {
				return nil, ledger.MapLookupError(err)
			}
			if err := m.settlePayment(ctx, payment); err != nil {
				return nil, err
			}
		}
	}
	return m.loadRefund(ctx, refund.ID)
}

func (m *manager) ListForPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) ([]models.Refund, error) {
	payment, err := m.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	if !actor.IsAdmin() && !actor.Owns(payment.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the payer or an admin may view refunds")
	}
	refunds, err := m.refunds.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return refunds, nil
}

func (m *manager) List(ctx context.Context, actor auth.Actor, status enums.RefundStatus, page pagination.Params) ([]models.Refund, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund status %q", status))
	}
	refunds, err := m.refunds.List(ctx, status, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return refunds, nil
}

func (m *manager) loadRefund(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	refund, err := m.refunds.FindByID(ctx, id)
	if err != nil {
		return nil, mapRefundLookup(err)
	}
	return refund, nil
}

// lostRace reports the state another decider left the refund in.
func (m *manager) lostRace(ctx context.Context, id uuid.UUID) error {
	current, err := m.loadRefund(ctx, id)
	if err != nil {
		return err
	}
	return invalidState(current.Status)
}

func invalidState(status enums.RefundStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("refund is %s, expected %s", status, enums.RefundStatusRequested)).
		WithDetails(map[string]any{"status": status})
}

func mapRefundLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
}

func failureReason(err error, result *processor.Refund) string {
	if result != nil && result.FailureReason != "" {
		return result.FailureReason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processor timeout"
	}
	return err.Error()
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
