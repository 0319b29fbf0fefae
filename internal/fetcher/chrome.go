package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"typeboard/leaderboard-api/internal/metrics"
	"typeboard/leaderboard-api/internal/scrape"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ChromeOpts struct {
	BaseURL     string
	Host        string
	BioMarker   string
	ExecPath    string
	UserAgent   string
	LoadTimeout time.Duration
	SettleDelay time.Duration
}

// Chrome fetches profiles with a headless browser. Every call launches its
// own browser and tears it down before returning.
type Chrome struct {
	opts ChromeOpts
}

func NewChrome(o ChromeOpts) *Chrome {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}

	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 60 * time.Second
	}

	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}

	return &Chrome{opts: o}
}

func (c *Chrome) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	target, err := ProfileURL(c.opts.BaseURL, c.opts.Host, username)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// Covers load and settle together
	runCtx, cancelRun := context.WithTimeout(tabCtx, c.opts.LoadTimeout+c.opts.SettleDelay)
	defer cancelRun()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(target))
	if err != nil {
		zap.L().Debug("Profile navigation failed", zap.String("username", username), zap.Error(err))

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w, timed out after %v", ErrUnreachable, c.opts.LoadTimeout)
		}

		return nil, fmt.Errorf("%w, %w", ErrUnreachable, err)
	}

	if resp != nil && resp.Status == http.StatusNotFound {
		return &Profile{Exists: false}, nil
	}

	var (
		location string
		html     string
	)

	err = chromedp.Run(runCtx,
		chromedp.Sleep(c.opts.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w, failed to read page content, %w", ErrUnreachable, err)
	}

	// Redirects must not take us off the expected host
	if err := CheckHost(location, c.opts.Host); err != nil {
		zap.L().Warn("Profile page redirected off host", zap.String("location", location))
		return nil, err
	}

	page, err := scrape.Parse(html, c.opts.BioMarker)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Exists:            page.Exists,
		BioContainsMarker: page.BioContainsMarker,
		HTML:              html,
	}, nil
}
