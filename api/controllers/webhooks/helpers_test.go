package webhooks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coralreef/resortpay/internal/webhooks"
	"github.com/coralreef/resortpay/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeSigningClient struct {
	secret string
	url    string
}

func (c *fakeSigningClient) SigningSecret() string   { return c.secret }
func (c *fakeSigningClient) NotificationURL() string { return c.url }

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *inMemoryStore) WebhookEventKey(provider, eventID string) string {
	return fmt.Sprintf("rp:webhook:%s:%s", provider, eventID)
}

func newTestGuard(t *testing.T, provider string) *webhooks.Guard {
	t.Helper()
	guard, err := webhooks.NewGuard(newInMemoryStore(), time.Minute, provider)
	require.NoError(t, err)
	return guard
}
