package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/enums"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
)

type memoryReplayStore map[string]string

func (m memoryReplayStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m memoryReplayStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key], _ = value.(string)
	return true, nil
}

func (m memoryReplayStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m memoryReplayStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

// routedRequest mimics a request after chi has matched pattern.
func routedRequest(method, path, pattern, body, key string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = WithActor(ctx, auth.Actor{Subject: "u-1", Email: "ada@example.com", Role: enums.ActorRoleUser})
	return req.WithContext(ctx)
}

func TestLookupReplayRule(t *testing.T) {
	cases := []struct {
		name     string
		method   string
		pattern  string
		ok       bool
		ttl      time.Duration
		optional bool
	}{
		{"refund request", http.MethodPost, "/api/v1/refunds", true, refundReplayTTL, false},
		{"refund decision", http.MethodPost, "/api/admin/v1/refunds/{refundId}/decision", true, refundReplayTTL, false},
		{"refund reconcile", http.MethodPost, "/api/admin/v1/refunds/{refundId}/reconcile", true, checkoutReplayTTL, true},
		{"booking checkout", http.MethodPost, "/api/v1/checkout/booking", true, checkoutReplayTTL, true},
		{"cart checkout", http.MethodPost, "/api/v1/checkout/cart", true, checkoutReplayTTL, true},
		{"confirm", http.MethodGet, "/api/v1/checkout/confirm", false, 0, false},
		{"refund list", http.MethodGet, "/api/v1/refunds", false, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := lookupReplayRule(tc.method, tc.pattern)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.ttl, rule.ttl)
				assert.Equal(t, tc.optional, rule.optional)
			}
		})
	}
}

func TestIdempotencyRequiresHeaderOnRefunds(t *testing.T) {
	called := false
	h := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{"payment_id":"x"}`, ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestIdempotencyOptionalRouteWithoutKey(t *testing.T) {
	store := memoryReplayStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), routedRequest(http.MethodPost, "/api/v1/checkout/booking", "/api/v1/checkout/booking", `{}`, ""))
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	h := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"r-1"}}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{"payment_id":"p"}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get("Idempotent-Replayed"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{"payment_id":"p"}`, "abc"))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, `{"data":{"id":"r-1"}}`, second.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := memoryReplayStore{}
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	h.ServeHTTP(httptest.NewRecorder(), routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{}`, "retry-me"))
	require.Empty(t, store)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	h := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{"amount":"10.00"}`, "xyz"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, routedRequest(http.MethodPost, "/api/v1/refunds", "/api/v1/refunds", `{"amount":"20.00"}`, "xyz"))
	require.Equal(t, http.StatusConflict, rec.Code)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestRoutePatternIgnoresWildcardMounts(t *testing.T) {
	req := routedRequest(http.MethodPost, "/api/v1/checkout/cart", "/api/v1/checkout/*", `{}`, "")
	require.Equal(t, "/api/v1/checkout/cart", routePattern(req))

	req = routedRequest(http.MethodPost, "/api/admin/v1/refunds/r-1/decision", "/api/admin/v1/refunds/{refundId}/decision", `{}`, "")
	require.Equal(t, "/api/admin/v1/refunds/{refundId}/decision", routePattern(req))
}
