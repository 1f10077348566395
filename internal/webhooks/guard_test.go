package webhooks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) WebhookEventKey(provider, eventID string) string {
	return "rp:webhook:" + provider + ":" + eventID
}

func TestGuardMarksOnce(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{data: map[string]string{}}
	guard, err := NewGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Contains(t, store.data, "rp:webhook:stripe:evt_1")

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardValidation(t *testing.T) {
	_, err := NewGuard(nil, time.Hour, "stripe")
	require.Error(t, err)
	_, err = NewGuard(&memoryStore{data: map[string]string{}}, time.Hour, "")
	require.Error(t, err)

	guard, err := NewGuard(&memoryStore{data: map[string]string{}}, 0, "square")
	require.NoError(t, err)
	_, err = guard.CheckAndMark(context.Background(), "")
	require.Error(t, err)
}
