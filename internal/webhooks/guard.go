// Package webhooks holds helpers shared by the processor webhook handlers.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventStore is the redis surface used to remember processed events.
type EventStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// Guard drops provider events that were already handled.
type Guard struct {
	store    EventStore
	ttl      time.Duration
	provider string
}

func NewGuard(store EventStore, ttl time.Duration, provider string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	return &Guard{store: store, ttl: ttl, provider: provider}, nil
}

// CheckAndMark records eventID and reports whether it had been seen before.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(g.provider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark webhook event: %w", err)
	}
	return !set, nil
}

// Delete forgets eventID so a provider retry is processed again.
func (g *Guard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(g.provider, eventID))
}
