package app

import (
	"context"
	"errors"
	"fmt"

	"typeboard/leaderboard-api/aws"
	"typeboard/leaderboard-api/db"
	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/fetcher"
	"typeboard/leaderboard-api/internal/leaderboard"
	"typeboard/leaderboard-api/internal/search"
	"typeboard/leaderboard-api/internal/service"
	"typeboard/leaderboard-api/internal/store"
	"typeboard/leaderboard-api/pkg/middleware"
	"typeboard/leaderboard-api/pkg/ratelimit"
	"typeboard/leaderboard-api/pkg/security"
	"typeboard/leaderboard-api/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

// NewRouter builds every dependency from the loaded configuration and
// returns the engine together with a function releasing background work
func NewRouter(ctx context.Context) (*gin.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	conn, err := db.New(v.GetString("db.driver"), v.GetString("db.dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	closers = append(closers, func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	st := store.New(conn)

	var (
		counters ratelimit.Store
		lease    service.Lease
	)

	switch v.GetString("ratelimit.store") {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		})

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis, %w", err)
		}
		closers = append(closers, func() { client.Close() })

		counters = ratelimit.NewRedisStore(client, "rl:")
		lease = service.NewRedisLease(client, "lease:")
		zap.L().Info("Using redis for counters and ingestion leases", zap.String("addr", v.GetString("redis.addr")))
	default:
		mem := ratelimit.NewMemoryStore()
		closers = append(closers, func() { mem.Close() })

		counters = mem
		lease = service.NewMemoryLease()
	}

	f, err := newFetcher(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	trackWords := v.GetBool("scrape.track_words")

	d := &internal.Deps{
		DB:    conn,
		Store: st,
		Ingestor: service.NewIngestor(st, f, lease, service.IngestorOpts{
			TrackWords: trackWords,
			LeaseTTL:   v.GetDuration("ingest.lease_ttl"),
		}),
		Verifier: service.NewEmailVerifier(st, newMailer(), security.New(), counters, service.VerifierOpts{}),
		Search: search.New(st, search.Options{
			FuzzyCandidates: v.GetInt("search.fuzzy_candidates"),
		}),
		Ranker:      leaderboard.NewRanker(st),
		TrackWords:  trackWords,
		BioMarker:   v.GetString("scrape.bio_marker"),
		EmailDomain: v.GetString("verification.email_domain"),
	}

	sweeper, err := service.CodeCleanup(v.GetString("verification.cleanup_schedule"), st)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { <-sweeper.Stop().Done() })

	router := New(d, Options{
		JWTSecret:           []byte(v.GetString("jwt.secret")),
		CORSOrigins:         util.SplitList(v.GetString("host.cors")),
		TrustedProxies:      util.SplitList(v.GetString("host.trusted_proxies")),
		MaxBodyBytes:        v.GetInt64("host.max_body_bytes"),
		Counters:            counters,
		Window:              v.GetDuration("ratelimit.window"),
		DefaultLimit:        v.GetInt("ratelimit.default_limit"),
		StrictLimit:         v.GetInt("ratelimit.strict_limit"),
		LeaderboardCacheTTL: v.GetDuration("leaderboard.cache_ttl"),
		Turnstile: middleware.TurnstileConfig{
			Enabled: v.GetBool("turnstile.enabled"),
			Secret:  v.GetString("turnstile.secret_token"),
		},
	})

	return router, cleanup, nil
}

// newFetcher stacks pacing, the circuit breaker and optional page
// archival on top of the headless browser
func newFetcher(ctx context.Context) (fetcher.Fetcher, error) {
	var f fetcher.Fetcher = fetcher.NewChrome(fetcher.ChromeOpts{
		BaseURL:     v.GetString("scrape.base_url"),
		Host:        v.GetString("scrape.host"),
		BioMarker:   v.GetString("scrape.bio_marker"),
		ExecPath:    v.GetString("scrape.chrome_path"),
		UserAgent:   v.GetString("scrape.user_agent"),
		LoadTimeout: v.GetDuration("scrape.load_timeout"),
		SettleDelay: v.GetDuration("scrape.settle_delay"),
	})

	f = fetcher.NewPacedFetcher(f, v.GetFloat64("scrape.rps"), v.GetInt("scrape.burst"))
	f = fetcher.NewBreakerFetcher(f, fetcher.BreakerOpts{
		Name:        "profile_fetcher",
		MaxFailures: v.GetUint32("breaker.max_failures"),
		Interval:    v.GetDuration("breaker.interval"),
		Timeout:     v.GetDuration("breaker.timeout"),
	})

	if !v.GetBool("snapshots.enabled") {
		return f, nil
	}

	s3, err := aws.NewS3(ctx, aws.S3Opts{
		AccessKeyID:     v.GetString("snapshots.access_key_id"),
		SecretAccessKey: v.GetString("snapshots.secret_access_key"),
		Region:          v.GetString("snapshots.region"),
		Bucket:          v.GetString("snapshots.bucket"),
		Endpoint:        v.GetString("snapshots.endpoint"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot storage, %w", err)
	}

	return fetcher.NewSnapshotFetcher(f, s3), nil
}

func newMailer() service.Mailer {
	if v.GetString("mail.host") == "" {
		zap.L().Warn("mail.host is not set, verification mails will fail")
		return disabledMailer{}
	}

	return service.NewSMTPMailer(service.SMTPOpts{
		Host:     v.GetString("mail.host"),
		Port:     v.GetInt("mail.port"),
		Username: v.GetString("mail.username"),
		Password: v.GetString("mail.password"),
		From:     v.GetString("mail.sender_address"),
		SiteName: v.GetString("app.site_name"),
	})
}

var errMailDisabled = errors.New("mail delivery is not configured")

type disabledMailer struct{}

func (disabledMailer) SendCode(context.Context, string, string, string) error {
	return errMailDisabled
}
