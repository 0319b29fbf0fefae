package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLease(t *testing.T) {
	l := NewMemoryLease()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrIngestionBusy)

	_, err = l.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err)

	release()
	release2, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestMemoryLeaseExpires(t *testing.T) {
	l := NewMemoryLease()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// The stale holder must not drop the fresh lease
	stale()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrIngestionBusy)
}

func TestRedisLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLease(client, "lease:")
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ingest:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lease:ingest:1"))

	_, err = l.Acquire(ctx, "ingest:1", time.Minute)
	assert.ErrorIs(t, err, ErrIngestionBusy)

	release()
	assert.False(t, mr.Exists("lease:ingest:1"))

	_, err = l.Acquire(ctx, "ingest:1", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = l.Acquire(ctx, "ingest:1", time.Minute)
	assert.NoError(t, err, "expired lease can be taken over")
}
