package fetcher

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// ErrPacingExceeded means the caller gave up waiting for a local fetch slot.
// The remote side was never contacted.
var ErrPacingExceeded = errors.New("no fetch slot before the request deadline")

// PacedFetcher caps how fast we hit the profile service across all users
type PacedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

func NewPacedFetcher(next Fetcher, perSecond float64, burst int) *PacedFetcher {
	if burst < 1 {
		burst = 1
	}

	return &PacedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *PacedFetcher) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w, %w, %w", ErrUnreachable, ErrPacingExceeded, err)
	}

	return p.next.FetchProfile(ctx, username)
}
