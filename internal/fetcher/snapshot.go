package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SnapshotStore keeps raw copies of fetched pages. Used to debug extraction
// when the profile layout changes.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

type SnapshotFetcher struct {
	next  Fetcher
	store SnapshotStore
	now   func() time.Time
}

func NewSnapshotFetcher(next Fetcher, s SnapshotStore) *SnapshotFetcher {
	return &SnapshotFetcher{next: next, store: s, now: time.Now}
}

// FetchProfile never fails because of the snapshot store
func (s *SnapshotFetcher) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	p, err := s.next.FetchProfile(ctx, username)
	if err != nil || p == nil || !p.Exists || p.HTML == "" {
		return p, err
	}

	key := fmt.Sprintf("snapshots/%s/%d.html", username, s.now().UTC().Unix())

	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.PutSnapshot(putCtx, key, []byte(p.HTML)); err != nil {
		zap.L().Warn("Failed to store profile snapshot", zap.String("key", key), zap.Error(err))
	}

	return p, nil
}
