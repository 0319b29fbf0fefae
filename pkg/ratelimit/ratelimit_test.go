package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		n, reset, err := m.Hit(context.Background(), "default:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Equal(t, now.Add(time.Minute), reset)
	}

	n, _, err := m.Hit(context.Background(), "strict:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "keys count independently")
}

func TestMemoryStoreStartsNewWindow(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, _, err := m.Hit(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	_, _, err = m.Hit(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)

	n, reset, err := m.Hit(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, now.Add(time.Minute), reset)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "rl:")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		n, reset, err := s.Hit(ctx, "strict:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.WithinDuration(t, time.Now().Add(time.Minute), reset, 2*time.Second)
	}

	assert.True(t, mr.Exists("rl:strict:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)

	n, _, err := s.Hit(ctx, "strict:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	mr.Close()

	_, _, err := NewRedisStore(client, "rl:").Hit(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
