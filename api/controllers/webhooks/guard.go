package webhooks

import "context"

// eventGuard is satisfied by internal/webhooks.Guard.
type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}
