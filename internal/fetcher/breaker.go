package fetcher

import (
	"context"
	"errors"
	"time"

	"typeboard/leaderboard-api/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var _ Fetcher = (*BreakerFetcher)(nil)

// BreakerFetcher stops calling the profile service after repeated failures
// and answers with ErrUnreachable until the cool-down passes. Nothing is
// retried.
type BreakerFetcher struct {
	next Fetcher
	cb   *gobreaker.CircuitBreaker[*Profile]
}

type BreakerOpts struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func NewBreakerFetcher(next Fetcher, o BreakerOpts) *BreakerFetcher {
	if o.Name == "" {
		o.Name = "profile-fetcher"
	}

	if o.MaxFailures == 0 {
		o.MaxFailures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(o.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Profile](gobreaker.Settings{
		Name:        o.Name,
		MaxRequests: 1,
		Interval:    o.Interval,
		Timeout:     o.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.MaxFailures
		},
		// Bad input and local pacing say nothing about the health of the remote side
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidUsername) ||
				errors.Is(err, ErrPacingExceeded) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Info("Fetcher circuit state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))

			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &BreakerFetcher{next: next, cb: cb}
}

func (b *BreakerFetcher) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	p, err := b.cb.Execute(func() (*Profile, error) {
		return b.next.FetchProfile(ctx, username)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrUnreachable, err)
	}

	return p, err
}
