package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lease hands out exclusive, expiring ownership of a key. Acquire fails
// with ErrIngestionBusy while another holder owns key.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type MemoryLease struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (m *MemoryLease) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return nil, ErrIngestionBusy
	}

	exp := now.Add(ttl)
	m.held[key] = exp

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		// Only drop our own hold, a newer one may have replaced an expired lease
		if m.held[key] == exp {
			delete(m.held, key)
		}
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease shares leases between instances through SET NX PX
type RedisLease struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLease(client redis.Cmdable, prefix string) *RedisLease {
	return &RedisLease{client: client, prefix: prefix}
}

func (r *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lease token, %w", err)
	}

	key = r.prefix + key

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease, %w", err)
	}

	if !ok {
		return nil, ErrIngestionBusy
	}

	return func() {
		// The request context may already be done, release on a fresh one
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			zap.L().Warn("Failed to release lease", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
