// Package booking forwards confirmed booking payloads to the external booking
// system.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/coralreef/resortpay/pkg/errors"
)

const (
	bookingsPath          = "/bookings"
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 1024
	idempotencyHeader     = "Idempotency-Key"
)

var errBaseURLRequired = errors.New("booking base url is required")

// Forwarder delivers a booking payload. key identifies the delivery so the
// booking system can drop replays.
type Forwarder interface {
	Forward(ctx context.Context, key string, payload json.RawMessage) error
}

// Client posts bookings over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every forward call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the booking client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Forward posts payload to the bookings endpoint. Any non-2xx response is an
// upstream error.
func (c *Client) Forward(ctx context.Context, key string, payload json.RawMessage) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "booking client not configured")
	}
	if len(payload) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking payload is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bookingsPath, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build booking request")
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "execute booking request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeUpstream,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"booking request failed")
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
	return nil
}
