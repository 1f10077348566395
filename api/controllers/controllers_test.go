package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralreef/resortpay/api/middleware"
	"github.com/coralreef/resortpay/internal/checkout"
	"github.com/coralreef/resortpay/internal/checkoutcontext"
	"github.com/coralreef/resortpay/internal/confirmation"
	"github.com/coralreef/resortpay/internal/ledger"
	"github.com/coralreef/resortpay/internal/refunds"
	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/config"
	"github.com/coralreef/resortpay/pkg/db/models"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	"github.com/coralreef/resortpay/pkg/pagination"
	"github.com/coralreef/resortpay/pkg/processor"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withActor(req *http.Request, email string, role enums.ActorRole) *http.Request {
	actor := auth.Actor{Subject: email, Email: email, Role: role}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

type stubInitiator struct {
	booking checkout.BookingCheckoutInput
	cart    checkout.CartCheckoutInput
	err     error
}

func (s *stubInitiator) StartBooking(ctx context.Context, input checkout.BookingCheckoutInput) (*checkout.Session, error) {
	s.booking = input
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Session{RedirectURL: "https://pay.example/cs_1", PaymentID: uuid.New(), Token: "tok", SessionID: "cs_1"}, nil
}

func (s *stubInitiator) StartCart(ctx context.Context, input checkout.CartCheckoutInput) (*checkout.Session, error) {
	s.cart = input
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Session{RedirectURL: "https://pay.example/cs_2", PaymentID: uuid.New(), Token: "tok", SessionID: "cs_2"}, nil
}

func TestCheckoutBooking(t *testing.T) {
	svc := &stubInitiator{}
	handler := CheckoutBooking(svc, testLogger())

	req := jsonRequest(t, http.MethodPost, "/api/v1/checkout/booking", map[string]any{
		"name":         "Ana Perera",
		"email":        "ana@example.com",
		"amount":       "250.00",
		"package":      "Deluxe Villa",
		"booking_data": map[string]any{"room": "villa-2", "nights": 3},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, svc.booking.Amount.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, "Deluxe Villa", svc.booking.Package)
	assert.JSONEq(t, `{"room":"villa-2","nights":3}`, string(svc.booking.BookingData))

	var session checkout.Session
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &session))
	assert.Equal(t, "https://pay.example/cs_1", session.RedirectURL)
}

func TestCheckoutBookingValidation(t *testing.T) {
	cases := map[string]map[string]any{
		"missing booking data": {"name": "A", "email": "a@example.com", "amount": "10", "package": "p"},
		"bad email":            {"name": "A", "email": "nope", "amount": "10", "package": "p", "booking_data": map[string]any{}},
		"three decimals":       {"name": "A", "email": "a@example.com", "amount": "10.005", "package": "p", "booking_data": map[string]any{}},
		"negative amount":      {"name": "A", "email": "a@example.com", "amount": "-1", "package": "p", "booking_data": map[string]any{}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			handler := CheckoutBooking(&stubInitiator{}, testLogger())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/api/v1/checkout/booking", body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(pkgerrors.CodeValidation), decodeEnvelope(t, rec).Error.Code)
		})
	}
}

func TestCheckoutCart(t *testing.T) {
	svc := &stubInitiator{}
	handler := CheckoutCart(svc, testLogger())

	req := jsonRequest(t, http.MethodPost, "/api/v1/checkout/cart", map[string]any{
		"name":          "Ana",
		"email":         "ana@example.com",
		"currency":      "LKR",
		"exchange_rate": "0.0033",
		"cart": []map[string]any{
			{"product_name": "Spa", "unit_price": "1000", "quantity": 2},
			{"product_name": "Dinner", "unit_price": "2500", "quantity": 1},
		},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, enums.CurrencyLKR, svc.cart.Currency)
	require.NotNil(t, svc.cart.ExchangeRate)
	assert.Equal(t, "0.0033", svc.cart.ExchangeRate.String())
	require.Len(t, svc.cart.Items, 2)
	assert.Equal(t, int64(2), svc.cart.Items[0].Quantity)
}

func TestCheckoutCartRejectsEmptyCart(t *testing.T) {
	handler := CheckoutCart(&stubInitiator{}, testLogger())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/api/v1/checkout/cart", map[string]any{
		"name": "Ana", "email": "ana@example.com", "cart": []any{},
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutUpstreamFailure(t *testing.T) {
	svc := &stubInitiator{err: pkgerrors.New(pkgerrors.CodeUpstream, "processor rejected session")}
	handler := CheckoutBooking(svc, testLogger())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/api/v1/checkout/booking", map[string]any{
		"name": "A", "email": "a@example.com", "amount": "10", "package": "p", "booking_data": map[string]any{"x": 1},
	}))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "processor rejected session", decodeEnvelope(t, rec).Error.Message)
}

type stubResolver struct {
	sessionID string
	token     string
	err       error
}

func (s *stubResolver) Confirm(ctx context.Context, sessionID, token string) (*confirmation.Confirmation, error) {
	s.sessionID, s.token = sessionID, token
	if s.err != nil {
		return nil, s.err
	}
	return &confirmation.Confirmation{ID: uuid.New(), Status: enums.PaymentStatusPaid}, nil
}

func (s *stubResolver) Abandon(ctx context.Context, sessionID string, metadata map[string]string) (*confirmation.Confirmation, error) {
	return nil, s.err
}

func TestCheckoutConfirm(t *testing.T) {
	t.Run("session id", func(t *testing.T) {
		svc := &stubResolver{}
		rec := httptest.NewRecorder()
		CheckoutConfirm(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/confirm?session_id=cs_1&token=tok", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cs_1", svc.sessionID)
		assert.Equal(t, "tok", svc.token)
	})
	t.Run("square order id", func(t *testing.T) {
		svc := &stubResolver{}
		rec := httptest.NewRecorder()
		CheckoutConfirm(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/confirm?orderId=ord_9", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ord_9", svc.sessionID)
	})
	t.Run("missing session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CheckoutConfirm(&stubResolver{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/confirm", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown session", func(t *testing.T) {
		svc := &stubResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")}
		rec := httptest.NewRecorder()
		CheckoutConfirm(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/confirm?session_id=cs_x", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type stubContexts struct {
	token string
}

func (s *stubContexts) Lookup(ctx context.Context, token string) (*checkoutcontext.Summary, error) {
	s.token = token
	if token != "tok" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout context not found")
	}
	return &checkoutcontext.Summary{Name: "Ana", Email: "ana@example.com", Amount: decimal.RequireFromString("14.85"), Package: "cart", Status: enums.CheckoutContextStatusInit}, nil
}

func (s *stubContexts) ListUnforwarded(ctx context.Context, page pagination.Params) ([]checkoutcontext.Unforwarded, error) {
	return []checkoutcontext.Unforwarded{{Token: "tok", ForwardState: enums.ForwardStateFailed}}, nil
}

func TestCheckoutContextLookup(t *testing.T) {
	svc := &stubContexts{}
	handler := CheckoutContextLookup(svc, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/contexts/tok", nil), map[string]string{"token": "tok"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary checkoutcontext.Summary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, "14.85", summary.Amount.StringFixed(2))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/contexts/nope", nil), map[string]string{"token": "nope"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type stubRefunds struct {
	request   refunds.RequestInput
	decide    refunds.DecideInput
	status    enums.RefundStatus
	reconcile uuid.UUID
	actor     auth.Actor
	err       error
}

func (s *stubRefunds) refund(status enums.RefundStatus) *models.Refund {
	return &models.Refund{ID: uuid.New(), PaymentID: uuid.New(), Amount: decimal.RequireFromString("100"), Status: status, PolicyWindowDays: 30}
}

func (s *stubRefunds) Request(ctx context.Context, actor auth.Actor, input refunds.RequestInput) (*models.Refund, error) {
	s.actor, s.request = actor, input
	if s.err != nil {
		return nil, s.err
	}
	return s.refund(enums.RefundStatusRequested), nil
}

func (s *stubRefunds) Decide(ctx context.Context, actor auth.Actor, input refunds.DecideInput) (*models.Refund, error) {
	s.actor, s.decide = actor, input
	if s.err != nil {
		return nil, s.err
	}
	return s.refund(enums.RefundStatusRefunded), nil
}

func (s *stubRefunds) Reconcile(ctx context.Context, actor auth.Actor, refundID uuid.UUID) (*models.Refund, error) {
	s.actor, s.reconcile = actor, refundID
	return s.refund(enums.RefundStatusRefunded), s.err
}

func (s *stubRefunds) ApplyProcessorUpdate(ctx context.Context, refundID *uuid.UUID, update processor.Refund) (*models.Refund, error) {
	return nil, errors.New("not used")
}

func (s *stubRefunds) ListForPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) ([]models.Refund, error) {
	s.actor = actor
	return []models.Refund{*s.refund(enums.RefundStatusDenied)}, s.err
}

func (s *stubRefunds) List(ctx context.Context, actor auth.Actor, status enums.RefundStatus, page pagination.Params) ([]models.Refund, error) {
	s.actor, s.status = actor, status
	return []models.Refund{*s.refund(status)}, s.err
}

func TestRequestRefund(t *testing.T) {
	paymentID := uuid.New()
	body := map[string]any{"payment_id": paymentID.String(), "amount": "25.50", "reason": "service_issue", "note": "pool closed"}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestRefund(&stubRefunds{}, testLogger()).ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/api/v1/refunds", body))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		svc := &stubRefunds{}
		req := withActor(jsonRequest(t, http.MethodPost, "/api/v1/refunds", body), "ana@example.com", enums.ActorRoleUser)
		rec := httptest.NewRecorder()
		RequestRefund(svc, testLogger()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, paymentID, svc.request.PaymentID)
		require.NotNil(t, svc.request.Amount)
		assert.Equal(t, "25.5", svc.request.Amount.String())
		assert.Equal(t, enums.RefundReasonServiceIssue, svc.request.Reason)
		assert.Equal(t, "ana@example.com", svc.actor.Email)

		var view map[string]any
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
		assert.Equal(t, "requested", view["status"])
	})

	t.Run("full amount when omitted", func(t *testing.T) {
		svc := &stubRefunds{}
		req := withActor(jsonRequest(t, http.MethodPost, "/api/v1/refunds", map[string]any{"payment_id": paymentID.String(), "reason": "other"}), "ana@example.com", enums.ActorRoleUser)
		rec := httptest.NewRecorder()
		RequestRefund(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Nil(t, svc.request.Amount)
	})

	t.Run("missing reason", func(t *testing.T) {
		svc := &stubRefunds{}
		req := withActor(jsonRequest(t, http.MethodPost, "/api/v1/refunds", map[string]any{"payment_id": paymentID.String()}), "ana@example.com", enums.ActorRoleUser)
		rec := httptest.NewRecorder()
		RequestRefund(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
		assert.Equal(t, uuid.Nil, svc.request.PaymentID)
	})

	t.Run("window expired", func(t *testing.T) {
		svc := &stubRefunds{err: pkgerrors.New(pkgerrors.CodeRefundWindowExpired, "refund window has expired").
			WithDetails(map[string]any{"policy_window_days": 30})}
		req := withActor(jsonRequest(t, http.MethodPost, "/api/v1/refunds", body), "ana@example.com", enums.ActorRoleUser)
		rec := httptest.NewRecorder()
		RequestRefund(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "REFUND_WINDOW_EXPIRED", env.Error.Code)
		assert.EqualValues(t, 30, env.Error.Details["policy_window_days"])
	})

	t.Run("bad reason", func(t *testing.T) {
		req := withActor(jsonRequest(t, http.MethodPost, "/api/v1/refunds", map[string]any{"payment_id": paymentID.String(), "reason": "changed_mind"}), "ana@example.com", enums.ActorRoleUser)
		rec := httptest.NewRecorder()
		RequestRefund(&stubRefunds{}, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentRefunds(t *testing.T) {
	svc := &stubRefunds{}
	paymentID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+paymentID.String()+"/refunds", nil)
	req = withURLParams(withActor(req, "ana@example.com", enums.ActorRoleUser), map[string]string{"paymentId": paymentID.String()})
	rec := httptest.NewRecorder()
	PaymentRefunds(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &list))
	require.Len(t, list, 1)
}

func TestAdminRefundDecision(t *testing.T) {
	refundID := uuid.New()

	t.Run("approve with amount", func(t *testing.T) {
		svc := &stubRefunds{}
		req := jsonRequest(t, http.MethodPost, "/api/admin/v1/refunds/"+refundID.String()+"/decision", map[string]any{"action": "approve", "amount": "40.00"})
		req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": refundID.String()})
		rec := httptest.NewRecorder()
		AdminRefundDecision(svc, testLogger()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, refundID, svc.decide.RefundID)
		assert.Equal(t, enums.RefundDecisionApprove, svc.decide.Decision)
		require.NotNil(t, svc.decide.Amount)
		assert.Equal(t, "40", svc.decide.Amount.String())
	})

	t.Run("unknown action", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/", map[string]any{"action": "maybe"})
		req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": refundID.String()})
		rec := httptest.NewRecorder()
		AdminRefundDecision(&stubRefunds{}, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("legacy decision field", func(t *testing.T) {
		svc := &stubRefunds{}
		req := jsonRequest(t, http.MethodPost, "/", map[string]any{"decision": "approve"})
		req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": refundID.String()})
		rec := httptest.NewRecorder()
		AdminRefundDecision(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, uuid.Nil, svc.decide.RefundID)
	})

	t.Run("bad id", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/", map[string]any{"action": "deny"})
		req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": "nope"})
		rec := httptest.NewRecorder()
		AdminRefundDecision(&stubRefunds{}, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("processor failure", func(t *testing.T) {
		svc := &stubRefunds{err: pkgerrors.New(pkgerrors.CodeUpstream, "processor refund failed")}
		req := jsonRequest(t, http.MethodPost, "/", map[string]any{"action": "approve"})
		req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": refundID.String()})
		rec := httptest.NewRecorder()
		AdminRefundDecision(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAdminRefundReconcileAndList(t *testing.T) {
	svc := &stubRefunds{}
	refundID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = withURLParams(withActor(req, "ops@example.com", enums.ActorRoleAdmin), map[string]string{"refundId": refundID.String()})
	rec := httptest.NewRecorder()
	AdminRefundReconcile(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, refundID, svc.reconcile)

	req = withActor(httptest.NewRequest(http.MethodGet, "/api/admin/v1/refunds?status=Requested&limit=10", nil), "ops@example.com", enums.ActorRoleAdmin)
	rec = httptest.NewRecorder()
	AdminRefundList(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.RefundStatusRequested, svc.status)
}

type stubLedger struct {
	filter ledger.ListFilter
}

func (s *stubLedger) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return &models.Payment{ID: id, Amount: decimal.RequireFromString("100"), Status: enums.PaymentStatusPaid}, nil
}

func (s *stubLedger) List(ctx context.Context, filter ledger.ListFilter) ([]models.Payment, error) {
	s.filter = filter
	return []models.Payment{{ID: uuid.New(), Email: filter.Email, Status: enums.PaymentStatusPaid}}, nil
}

func TestAdminPayments(t *testing.T) {
	svc := &stubLedger{}
	rec := httptest.NewRecorder()
	AdminPaymentList(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments?status=paid&email=Ana@Example.com&offset=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.PaymentStatusPaid, svc.filter.Status)
	assert.Equal(t, "ana@example.com", svc.filter.Email)
	assert.Equal(t, 5, svc.filter.Page.Offset)

	id := uuid.New()
	rec = httptest.NewRecorder()
	AdminPaymentDetail(svc, testLogger()).ServeHTTP(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"paymentId": id.String()}))
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	assert.Equal(t, id.String(), view["id"])

	rec = httptest.NewRecorder()
	AdminUnforwardedContexts(&stubContexts{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-ResortPay-Env"))

	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"db": ok, "redis": ok}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}
