package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/coralreef/resortpay/api/responses"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
	pkgredis "github.com/coralreef/resortpay/pkg/redis"
)

// IdempotencyHeader carries the client-chosen replay key.
const IdempotencyHeader = "Idempotency-Key"

const (
	checkoutReplayTTL = 24 * time.Hour
	refundReplayTTL   = 7 * 24 * time.Hour
)

// replayRule marks a route as replay-safe. Optional rules only engage when
// the client sends a key.
type replayRule struct {
	method   string
	prefix   string
	suffix   string
	ttl      time.Duration
	optional bool
}

func (r replayRule) matches(method, pattern string) bool {
	if r.method != method {
		return false
	}
	if r.suffix == "" {
		return pattern == r.prefix
	}
	return strings.HasPrefix(pattern, r.prefix) && strings.HasSuffix(pattern, r.suffix)
}

var replayRules = []replayRule{
	{method: http.MethodPost, prefix: "/api/v1/checkout/booking", ttl: checkoutReplayTTL, optional: true},
	{method: http.MethodPost, prefix: "/api/v1/checkout/cart", ttl: checkoutReplayTTL, optional: true},
	{method: http.MethodPost, prefix: "/api/v1/refunds", ttl: refundReplayTTL},
	{method: http.MethodPost, prefix: "/api/admin/v1/refunds/", suffix: "/decision", ttl: refundReplayTTL},
	{method: http.MethodPost, prefix: "/api/admin/v1/refunds/", suffix: "/reconcile", ttl: checkoutReplayTTL, optional: true},
}

func lookupReplayRule(method, pattern string) (replayRule, bool) {
	for _, rule := range replayRules {
		if rule.matches(method, pattern) {
			return rule, true
		}
	}
	return replayRule{}, false
}

// storedResponse is the redis value for a completed request.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

type replayStore struct {
	store pkgredis.IdempotencyStore
}

func (s replayStore) load(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out storedResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s replayStore) save(ctx context.Context, key string, resp storedResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = s.store.SetNX(ctx, key, string(payload), ttl)
	return err
}

// Idempotency replays the stored response for a repeated Idempotency-Key and
// rejects a key reused with a different body. Responses with a 5xx status
// are not stored so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		replays := replayStore{store: store}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rule, ok := lookupReplayRule(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				if rule.optional {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			previous, err := replays.load(ctx, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if previous != nil {
				if previous.Fingerprint != fingerprint {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				previous.replay(w)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusOrOK()
			if status >= http.StatusInternalServerError {
				return
			}
			saveErr := replays.save(ctx, key, storedResponse{
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				Fingerprint: fingerprint,
			}, rule.ttl)
			if saveErr != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", saveErr)
			}
		})
	}
}

// replayScope keys records by caller, method and path so two guests can use
// the same header value.
func replayScope(r *http.Request) string {
	subject := "anonymous"
	if actor, ok := ActorFromContext(r.Context()); ok && actor.Subject != "" {
		subject = actor.Subject
	}
	return subject + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		// Group middleware runs before the sub-router resolves the endpoint.
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
