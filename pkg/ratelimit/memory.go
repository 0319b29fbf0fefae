package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
)

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in process. Expired windows are swept by the
// cache, so it is only correct while a single instance serves traffic.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	c := ttlcache.NewCache()
	c.SkipTTLExtensionOnHit(true)

	return &MemoryStore{
		cache: c,
		now:   time.Now,
	}
}

func (m *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	v, err := m.cache.Get(key)
	if err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		return 0, time.Time{}, fmt.Errorf("failed to read counter, %w", err)
	}

	c, ok := v.(*counter)
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}

		if err := m.cache.SetWithTTL(key, c, window); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to store counter, %w", err)
		}
	}

	c.count++

	return c.count, c.resetAt, nil
}

// Close stops the sweeper goroutine of the cache
func (m *MemoryStore) Close() error {
	return m.cache.Close()
}
