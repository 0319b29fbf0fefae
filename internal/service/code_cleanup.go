package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type CodeStore interface {
	ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// CodeCleanup periodically drops expired verification codes. schedule is a
// cron expression such as "@every 1h". Stop the returned cron on shutdown.
func CodeCleanup(schedule string, s CodeStore) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() { sweepCodes(s) })
	if err != nil {
		return nil, fmt.Errorf("failed to schedule code cleanup, %w", err)
	}

	zap.L().Debug("Code cleanup attached", zap.String("schedule", schedule))

	c.Start()
	return c, nil
}

func sweepCodes(s CodeStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.ClearExpiredCodes(ctx, time.Now())
	if err != nil {
		zap.L().Error("Failed to clear expired verification codes", zap.Error(err))
		return
	}

	if n > 0 {
		zap.L().Debug("Cleared expired verification codes", zap.Int64("count", n))
	}
}
