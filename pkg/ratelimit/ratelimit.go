// Package ratelimit contains fixed-window request counters
package ratelimit

import (
	"context"
	"time"
)

// Store counts hits per key in fixed windows. Hit increments the counter of
// key, starting a new window of the given length if none is open, and
// returns the count including this hit together with the window end.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}
