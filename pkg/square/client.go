package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/coralreef/resortpay/pkg/config"
	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
	"github.com/coralreef/resortpay/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var hosts = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// backend is the subset of the Square SDK the processor calls.
type backend struct {
	createPaymentLink func(context.Context, *sqcheckout.CreatePaymentLinkRequest, ...sqoption.RequestOption) (*sq.CreatePaymentLinkResponse, error)
	getOrder          func(context.Context, *sq.GetOrdersRequest, ...sqoption.RequestOption) (*sq.GetOrderResponse, error)
	refundPayment     func(context.Context, *sq.RefundPaymentRequest, ...sqoption.RequestOption) (*sq.RefundPaymentResponse, error)
	getRefund         func(context.Context, *sq.GetRefundsRequest, ...sqoption.RequestOption) (*sq.GetPaymentRefundResponse, error)
}

func backendFromSDK(sdk *sqclient.Client) backend {
	return backend{
		createPaymentLink: sdk.Checkout.PaymentLinks.Create,
		getOrder:          sdk.Orders.Get,
		refundPayment:     sdk.Refunds.RefundPayment,
		getRefund:         sdk.Refunds.Get,
	}
}

// settings is the validated subset of config.SquareConfig.
type settings struct {
	environment   string
	accessToken   string
	webhookSecret string
	webhookURL    string
	locationID    string
}

func parseSettings(cfg config.SquareConfig) (settings, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = sandboxEnv
	}
	if _, ok := hosts[env]; !ok {
		return settings{}, fmt.Errorf("square environment must be %q or %q, got %q", sandboxEnv, productionEnv, env)
	}
	out := settings{
		environment:   env,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		webhookURL:    strings.TrimSpace(cfg.WebhookURL),
		locationID:    strings.TrimSpace(cfg.LocationID),
	}
	var missing []string
	if out.accessToken == "" {
		missing = append(missing, "access token")
	}
	if out.webhookSecret == "" {
		missing = append(missing, "webhook secret")
	}
	if out.locationID == "" {
		missing = append(missing, "location id")
	}
	if len(missing) > 0 {
		return settings{}, fmt.Errorf("square %s required", strings.Join(missing, ", "))
	}
	return out, nil
}

// Client implements processor.Client on top of Square payment links, orders
// and refunds.
type Client struct {
	api           backend
	environment   string
	webhookSecret string
	webhookURL    string
	locationID    string
	logger        *logger.Logger
}

// NewClient validates cfg and builds an SDK-backed client.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	s, err := parseSettings(cfg)
	if err != nil {
		return nil, err
	}
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(hosts[s.environment]),
		sqoption.WithToken(s.accessToken),
	)
	c := &Client{
		api:           backendFromSDK(sdk),
		environment:   s.environment,
		webhookSecret: s.webhookSecret,
		webhookURL:    s.webhookURL,
		locationID:    s.locationID,
		logger:        logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", s.environment), "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Square webhook signature key.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NotificationURL returns the webhook URL Square signs along with each body.
func (c *Client) NotificationURL() string {
	if c == nil {
		return ""
	}
	return c.webhookURL
}

// idempotencyKey keeps a caller-supplied key and otherwise generates one
// scoped by prefix.
func idempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "rp"
	}
	return prefix + "-" + uuid.NewString()
}

// trace logs one Square call. Callers pass identifiers and amounts only.
func (c *Client) trace(ctx context.Context, op string, started time.Time, fields map[string]any, err error) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		logFields[k] = v
	}
	logFields["square_op"] = op
	logFields["duration_ms"] = time.Since(started).Milliseconds()
	ctx = c.logger.WithFields(ctx, logFields)
	if err != nil {
		c.logger.Warn(ctx, "square call failed: "+err.Error())
		return
	}
	c.logger.Info(ctx, "square call completed")
}

// translateError converts SDK failures into domain errors. A 404 becomes
// NotFound, a reused idempotency key becomes Idempotency, everything else is
// an upstream failure.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
	}
	for _, code := range errorCodes(apiErr) {
		if code == sq.ErrorCodeIdempotencyKeyReused {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		}
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
}

// errorCodes decodes the errors array Square returns in the response body.
func errorCodes(apiErr *sqcore.APIError) []sq.ErrorCode {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	codes := make([]sq.ErrorCode, 0, len(body.Errors))
	for _, e := range body.Errors {
		if e != nil {
			codes = append(codes, e.GetCode())
		}
	}
	return codes
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
