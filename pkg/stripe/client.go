package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/coralreef/resortpay/pkg/config"
	"github.com/coralreef/resortpay/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// backend is the slice of the Stripe resource API used by the processor.
type backend struct {
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newRefund  func(*stripe.RefundParams) (*stripe.Refund, error)
	getRefund  func(string, *stripe.RefundParams) (*stripe.Refund, error)
}

func defaultBackend() backend {
	return backend{
		newSession: session.New,
		getSession: session.Get,
		newRefund:  refund.New,
		getRefund:  refund.Get,
	}
}

// Client wraps Stripe's checkout and refund APIs plus env-specific metadata.
type Client struct {
	api           backend
	environment   string
	signingSecret string
	logger        *logger.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:           defaultBackend(),
		environment:   env,
		signingSecret: signingSecret,
		logger:        logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func (c *Client) log(ctx context.Context, op string, fields map[string]any, err error) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{"operation": op, "processor": "stripe"}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	if err != nil {
		c.logger.Error(ctx, fmt.Sprintf("stripe %s failed", op), err)
		return
	}
	c.logger.Info(ctx, fmt.Sprintf("stripe %s", op))
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
