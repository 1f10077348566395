// Package confirmation resolves hosted checkout sessions into paid payments
// and consumes their checkout contexts exactly once.
package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/booking"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/metrics"
	"github.com/coralreef/resortpay/pkg/processor"
	"github.com/coralreef/resortpay/pkg/security"
)

// Resolver confirms checkout sessions.
type Resolver interface {
	Confirm(ctx context.Context, sessionID, token string) (*Confirmation, error)
	Abandon(ctx context.Context, sessionID string, metadata map[string]string) (*Confirmation, error)
}

// Confirmation is the payment merged with the booking payload or cart that
// produced it. Pending payments carry no payload.
type Confirmation struct {
	ID             uuid.UUID            `json:"id"`
	CustomerName   string               `json:"customer_name"`
	Email          string               `json:"email"`
	Amount         decimal.Decimal      `json:"amount"`
	Currency       enums.Currency       `json:"currency"`
	Package        string               `json:"package"`
	Status         enums.PaymentStatus  `json:"status"`
	TransactionRef *string              `json:"transaction_ref,omitempty"`
	PaymentDate    time.Time            `json:"payment_date"`
	CheckoutType   enums.CheckoutType   `json:"checkout_type,omitempty"`
	BookingData    json.RawMessage      `json:"booking_data,omitempty"`
	Cart           *models.CartSnapshot `json:"cart,omitempty"`
}

// Config bounds outbound calls made during confirmation.
type Config struct {
	ProcessorTimeout time.Duration
	BookingTimeout   time.Duration
}

type resolver struct {
	processor processor.Client
	payments  ledger.Repository
	contexts  checkoutcontext.Repository
	bookings  booking.Forwarder
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewResolver wires the confirmation resolver.
func NewResolver(
	client processor.Client,
	payments ledger.Repository,
	contexts checkoutcontext.Repository,
	bookings booking.Forwarder,
	recorder *metrics.PaymentMetrics,
	logg *logger.Logger,
	cfg Config,
) (Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if contexts == nil {
		return nil, fmt.Errorf("checkout context repository required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking forwarder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &resolver{
		processor: client,
		payments:  payments,
		contexts:  contexts,
		bookings:  bookings,
		metrics:   recorder,
		logg:      logg,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *resolver) Confirm(ctx context.Context, sessionID, token string) (*Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	token = strings.TrimSpace(token)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ctx = r.logg.WithField(ctx, "session_id", sessionID)

	session, err := r.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sessionToken := session.Metadata[processor.MetadataContextToken]
	switch {
	case token == "":
		token = sessionToken
	case sessionToken != "" && !security.EqualTokens(token, sessionToken):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout context not found")
	}

	payment, err := r.locatePayment(ctx, session, token)
	if err != nil {
		return nil, err
	}
	ctx = r.logg.WithPaymentID(ctx, payment.ID.String())

	record, err := r.findContext(ctx, payment.ID, token)
	if err != nil {
		return nil, err
	}
	if record != nil && record.PaymentID != payment.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout context not found")
	}

	if !session.Paid {
		r.metrics.IncConfirmation(string(payment.Status))
		return fromPayment(payment), nil
	}

	if payment.Status == enums.PaymentStatusFailed {
		r.logg.Warn(ctx, "paid session belongs to a failed payment")
		r.metrics.IncConfirmation(string(payment.Status))
		return fromPayment(payment), nil
	}
	if payment.Status == enums.PaymentStatusPending {
		payment, err = r.markPaid(ctx, payment, session)
		if err != nil {
			return nil, err
		}
	}

	out := fromPayment(payment)
	if record == nil {
		r.logg.Warn(ctx, "paid session has no checkout context")
	} else if err := r.consumeContext(ctx, record, out); err != nil {
		return nil, err
	}
	r.metrics.IncConfirmation(string(payment.Status))
	return out, nil
}

// Abandon fails the pending payment behind a session the processor expired
// or could not collect. Payments past pending are returned unchanged.
func (r *resolver) Abandon(ctx context.Context, sessionID string, metadata map[string]string) (*Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ctx = r.logg.WithField(ctx, "session_id", sessionID)

	session := &processor.Session{ID: sessionID, Metadata: metadata}
	payment, err := r.locatePayment(ctx, session, strings.TrimSpace(metadata[processor.MetadataContextToken]))
	if err != nil {
		return nil, err
	}
	ctx = r.logg.WithPaymentID(ctx, payment.ID.String())
	if payment.Status != enums.PaymentStatusPending {
		return fromPayment(payment), nil
	}

	updated, err := r.payments.MarkFailed(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if updated {
		r.logg.Info(ctx, "payment marked failed")
	}
	reloaded, err := r.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	r.metrics.IncConfirmation(string(reloaded.Status))
	return fromPayment(reloaded), nil
}

func (r *resolver) fetchSession(ctx context.Context, sessionID string) (*processor.Session, error) {
	callCtx := ctx
	if r.cfg.ProcessorTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.ProcessorTimeout)
		defer cancel()
	}
	started := time.Now()
	session, err := r.processor.GetSession(callCtx, sessionID)
	r.metrics.ObserveProcessorCall("get_session", time.Since(started))
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		r.logg.Error(ctx, "retrieve checkout session", err)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUpstream {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "retrieve checkout session")
	}
	return session, nil
}

// locatePayment resolves the payment from session metadata, then the context
// token, then the stored session id.
func (r *resolver) locatePayment(ctx context.Context, session *processor.Session, token string) (*models.Payment, error) {
	if raw := strings.TrimSpace(session.Metadata[processor.MetadataPaymentID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		payment, err := r.payments.FindByID(ctx, id)
		if err != nil {
			return nil, ledger.MapLookupError(err)
		}
		return payment, nil
	}

	if token != "" {
		record, err := r.contexts.FindByToken(ctx, token)
		switch {
		case err == nil:
			payment, err := r.payments.FindByID(ctx, record.PaymentID)
			if err != nil {
				return nil, ledger.MapLookupError(err)
			}
			return payment, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, checkoutcontext.MapLookupError(err)
		}
	}

	payment, err := r.payments.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	return payment, nil
}

func (r *resolver) markPaid(ctx context.Context, payment *models.Payment, session *processor.Session) (*models.Payment, error) {
	ref := strings.TrimSpace(session.PaymentRef)
	if ref == "" {
		ref = session.ID
	}
	updated, err := r.payments.MarkPaid(ctx, payment.ID, ref, r.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}
	if updated {
		r.logg.Info(r.logg.WithField(ctx, "transaction_ref", ref), "payment marked paid")
	}
	reloaded, err := r.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, ledger.MapLookupError(err)
	}
	return reloaded, nil
}

// consumeContext moves the context from init to paid. Only the caller that
// wins the conditional update runs the type side effect. Every caller
// surfaces the stored payload.
func (r *resolver) consumeContext(ctx context.Context, record *models.CheckoutContext, out *Confirmation) error {
	var err error
	won := false
	if record.Status == enums.CheckoutContextStatusInit {
		won, err = r.contexts.MarkPaid(ctx, record.Token, r.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume checkout context")
		}
	}
	if won && record.Type == enums.CheckoutTypeBooking {
		r.forwardBooking(ctx, record)
	}

	out.CheckoutType = record.Type
	switch record.Type {
	case enums.CheckoutTypeBooking:
		if len(record.BookingData) > 0 {
			out.BookingData = json.RawMessage(record.BookingData)
		}
	case enums.CheckoutTypeCart:
		cart, err := checkoutcontext.DecodeCart(record)
		if err != nil {
			return err
		}
		out.Cart = cart
	}
	return nil
}

func (r *resolver) findContext(ctx context.Context, paymentID uuid.UUID, token string) (*models.CheckoutContext, error) {
	var (
		record *models.CheckoutContext
		err    error
	)
	if token != "" {
		record, err = r.contexts.FindByToken(ctx, token)
	} else {
		record, err = r.contexts.FindByPaymentID(ctx, paymentID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, checkoutcontext.MapLookupError(err)
	}
	return record, nil
}

// forwardBooking delivers the payload after the context was consumed. The
// request context may be gone by then, so the call runs detached with its own
// deadline. Failures are recorded on the context for reconciliation.
func (r *resolver) forwardBooking(ctx context.Context, record *models.CheckoutContext) {
	callCtx := context.WithoutCancel(ctx)
	if r.cfg.BookingTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.cfg.BookingTimeout)
		defer cancel()
	}

	state := enums.ForwardStateForwarded
	var forwardErr *string
	if err := r.bookings.Forward(callCtx, record.Token, json.RawMessage(record.BookingData)); err != nil {
		state = enums.ForwardStateFailed
		msg := err.Error()
		forwardErr = &msg
		r.metrics.IncBookingForward(metrics.OutcomeFailure)
		r.logg.Error(ctx, "booking forward failed; flagged for reconciliation", err)
	} else {
		r.metrics.IncBookingForward(metrics.OutcomeSuccess)
		r.logg.Info(ctx, "booking forwarded")
	}

	if err := r.contexts.SetForwardState(context.WithoutCancel(ctx), record.Token, state, forwardErr, r.now()); err != nil {
		r.logg.Error(ctx, "record booking forward state", err)
	}
	record.ForwardState = state
}

func fromPayment(payment *models.Payment) *Confirmation {
	return &Confirmation{
		ID:             payment.ID,
		CustomerName:   payment.CustomerName,
		Email:          payment.Email,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Package:        payment.Package,
		Status:         payment.Status,
		TransactionRef: payment.TransactionRef,
		PaymentDate:    payment.PaymentDate,
	}
}
