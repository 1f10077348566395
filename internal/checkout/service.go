// Package checkout starts hosted checkout sessions for direct bookings and
// carts.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/metrics"
	"github.com/coralreef/resortpay/pkg/money"
	"github.com/coralreef/resortpay/pkg/processor"
	"github.com/coralreef/resortpay/pkg/security"
)

const (
	tokenQueryParam = "token"
	cartDescription = "Resort cart"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Initiator creates a pending payment, its checkout context and a processor
// session in one unit of work.
type Initiator interface {
	StartBooking(ctx context.Context, input BookingCheckoutInput) (*Session, error)
	StartCart(ctx context.Context, input CartCheckoutInput) (*Session, error)
}

// BookingCheckoutInput is a direct booking purchase.
type BookingCheckoutInput struct {
	Name        string
	Email       string
	Amount      decimal.Decimal
	Package     string
	BookingData json.RawMessage
}

// CartItemInput is one cart line priced in the cart currency.
type CartItemInput struct {
	ProductID   string
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// CartCheckoutInput is a cart purchase. A nil ExchangeRate falls back to the
// configured default rate.
type CartCheckoutInput struct {
	Name         string
	Email        string
	Currency     enums.Currency
	ExchangeRate *decimal.Decimal
	Items        []CartItemInput
}

// Session is returned to the caller after a successful initiation.
type Session struct {
	RedirectURL string    `json:"redirect_url"`
	PaymentID   uuid.UUID `json:"payment_id"`
	Token       string    `json:"token"`
	SessionID   string    `json:"session_id"`
}

// Config carries the redirect and currency settings of the initiator.
type Config struct {
	SuccessURL          string
	CancelURL           string
	Settlement          enums.Currency
	DefaultExchangeRate decimal.Decimal
	ProcessorTimeout    time.Duration
}

type service struct {
	tx        txRunner
	payments  ledger.Repository
	contexts  checkoutcontext.Repository
	processor processor.Client
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	validate  *validator.Validate
	cfg       Config
	now       func() time.Time
}

// NewInitiator builds the checkout initiator.
func NewInitiator(
	tx txRunner,
	payments ledger.Repository,
	contexts checkoutcontext.Repository,
	client processor.Client,
	recorder *metrics.PaymentMetrics,
	logg *logger.Logger,
	cfg Config,
) (Initiator, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if contexts == nil {
		return nil, fmt.Errorf("checkout context repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, fmt.Errorf("success and cancel urls required")
	}
	if cfg.Settlement == "" {
		cfg.Settlement = enums.CurrencyUSD
	}
	return &service{
		tx:        tx,
		payments:  payments,
		contexts:  contexts,
		processor: client,
		metrics:   recorder,
		logg:      logg,
		validate:  validator.New(),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// pendingCheckout is everything needed to request a session and persist the
// resulting records.
type pendingCheckout struct {
	kind        enums.CheckoutType
	name        string
	email       string
	amount      decimal.Decimal
	pkg         string
	lines       []processor.LineItem
	bookingData datatypes.JSON
	cartItems   datatypes.JSON
}

func (s *service) StartBooking(ctx context.Context, input BookingCheckoutInput) (*Session, error) {
	name, email, err := s.payer(input.Name, input.Email)
	if err != nil {
		return nil, err
	}
	pkg := strings.TrimSpace(input.Package)
	if pkg == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package is required")
	}
	if !money.IsValidAmount(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive with at most two decimal places")
	}
	payload := strings.TrimSpace(string(input.BookingData))
	if payload == "" || payload == "null" || !json.Valid(input.BookingData) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking data is required")
	}

	return s.start(ctx, pendingCheckout{
		kind:   enums.CheckoutTypeBooking,
		name:   name,
		email:  email,
		amount: input.Amount,
		pkg:    pkg,
		lines: []processor.LineItem{{
			Name:            pkg,
			UnitAmountCents: money.ToCents(input.Amount),
			Quantity:        1,
		}},
		bookingData: datatypes.JSON(input.BookingData),
	})
}

func (s *service) StartCart(ctx context.Context, input CartCheckoutInput) (*Session, error) {
	name, email, err := s.payer(input.Name, input.Email)
	if err != nil {
		return nil, err
	}
	from, err := enums.NormalizeCurrency(string(input.Currency), s.cfg.Settlement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	conversion, err := resolveConversion(from, s.cfg.Settlement, input.ExchangeRate, s.cfg.DefaultExchangeRate)
	if err != nil {
		return nil, err
	}
	quote, err := priceCart(input.Items, conversion)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(quote.Snapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}

	return s.start(ctx, pendingCheckout{
		kind:      enums.CheckoutTypeCart,
		name:      name,
		email:     email,
		amount:    quote.Total,
		pkg:       cartPackage(input.Items),
		lines:     quote.Lines,
		cartItems: datatypes.JSON(snapshot),
	})
}

func (s *service) payer(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	return name, email, nil
}

// start requests the processor session first and only persists the payment
// and context once the processor accepted it.
func (s *service) start(ctx context.Context, checkout pendingCheckout) (*Session, error) {
	paymentID := uuid.New()
	token, err := security.NewOpaqueToken(security.DefaultTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate checkout token")
	}
	ctx = s.logg.WithPaymentID(ctx, paymentID.String())
	ctx = s.logg.WithField(ctx, "checkout_type", string(checkout.kind))

	successURL, err := withQueryParam(s.cfg.SuccessURL, tokenQueryParam, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build success url")
	}

	description := checkout.pkg
	if checkout.kind == enums.CheckoutTypeCart {
		description = cartDescription
	}

	callCtx := ctx
	if s.cfg.ProcessorTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		defer cancel()
	}
	started := time.Now()
	session, err := s.processor.CreateSession(callCtx, processor.SessionRequest{
		Currency:      s.cfg.Settlement,
		CustomerEmail: checkout.email,
		Description:   description,
		LineItems:     checkout.lines,
		Metadata: map[string]string{
			processor.MetadataPaymentID:    paymentID.String(),
			processor.MetadataContextToken: token,
		},
		SuccessURL:     successURL,
		CancelURL:      s.cfg.CancelURL,
		IdempotencyKey: processor.SessionIdempotencyKey(paymentID.String()),
	})
	s.metrics.ObserveProcessorCall("create_session", time.Since(started))
	if err != nil {
		s.metrics.IncCheckoutSession(string(checkout.kind), metrics.OutcomeFailure)
		s.logg.Error(ctx, "processor rejected checkout session", err)
		return nil, upstreamError(err, "create checkout session")
	}

	now := s.now()
	sessionID := session.ID
	payment := &models.Payment{
		ID:                 paymentID,
		CustomerName:       checkout.name,
		Email:              checkout.email,
		Amount:             checkout.amount,
		Currency:           s.cfg.Settlement,
		Package:            checkout.pkg,
		Status:             enums.PaymentStatusPending,
		ProcessorSessionID: &sessionID,
		PaymentDate:        now,
	}
	record := &models.CheckoutContext{
		Token:        token,
		Type:         checkout.kind,
		PaymentID:    paymentID,
		Name:         checkout.name,
		Email:        checkout.email,
		Amount:       checkout.amount,
		Package:      checkout.pkg,
		BookingData:  checkout.bookingData,
		CartItems:    checkout.cartItems,
		Status:       enums.CheckoutContextStatusInit,
		ForwardState: enums.ForwardStateNone,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		return s.contexts.WithTx(tx).Create(ctx, record)
	}); err != nil {
		s.metrics.IncCheckoutSession(string(checkout.kind), metrics.OutcomeFailure)
		s.logg.Error(ctx, "persist checkout records", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout")
	}

	s.metrics.IncCheckoutSession(string(checkout.kind), metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithField(ctx, "session_id", sessionID), "checkout session created")

	return &Session{
		RedirectURL: session.RedirectURL,
		PaymentID:   paymentID,
		Token:       token,
		SessionID:   sessionID,
	}, nil
}

func withQueryParam(rawURL, key, value string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// upstreamError keeps validation errors from the processor adapter and maps
// everything else to UPSTREAM_ERROR.
func upstreamError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation, pkgerrors.CodeUpstream:
			return typed
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, op)
}
