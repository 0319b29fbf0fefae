package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"typeboard/leaderboard-api/app/leaderboard"
	"typeboard/leaderboard-api/app/profile"
	"typeboard/leaderboard-api/app/root"
	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/pkg/middleware"
	"typeboard/leaderboard-api/pkg/ratelimit"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	JWTSecret   []byte
	CORSOrigins []string
	// TrustedProxies are allowed to set the client address headers
	TrustedProxies []string
	MaxBodyBytes   int64

	Counters     ratelimit.Store
	Window       time.Duration
	DefaultLimit int
	StrictLimit  int

	// LeaderboardCacheTTL of 0 disables the response cache
	LeaderboardCacheTTL time.Duration

	Turnstile middleware.TurnstileConfig
}

// New mounts every route on a fresh engine
func New(d *internal.Deps, o Options) *gin.Engine {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 16 << 10
	}

	router := gin.New()

	if err := router.SetTrustedProxies(o.TrustedProxies); err != nil {
		zap.L().Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		router.SetTrustedProxies(nil)
	}

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     o.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.TurnstileHeader},
			ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD" || c.Request.URL.Path == "/metrics"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if id, ok := middleware.IdentityFrom(c); ok {
					fields = append(fields, zap.String("discordID", id.DiscordID))
				}

				return fields
			},
		}),
		middleware.NewSecurityHeadersMiddleware(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	session := middleware.NewSessionMiddleware(o.JWTSecret)
	turnstile := middleware.NewTurnstileMiddleware(o.Turnstile)
	bodyLimit := middleware.BodySizeLimiter(o.MaxBodyBytes)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		Store:        o.Counters,
		Window:       o.Window,
		DefaultLimit: o.DefaultLimit,
		StrictLimit:  o.StrictLimit,
		StrictPaths:  []string{"/profile/link", "/profile/refresh"},
	})

	// GET /metrics			-> Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })
	}

	lb := m.Group("/leaderboard")
	{
		// GET /api/leaderboard/search	-> Searches players by username
		lb.GET("/search", func(c *gin.Context) { leaderboard.Search(c, d) })

		// GET /api/leaderboard/:category	-> Returns one page of a category
		lb.GET("/:category", cacheUnlessRefresh(o.LeaderboardCacheTTL), func(c *gin.Context) { leaderboard.Fetch(c, d) })
	}

	p := m.Group("/profile", session, bodyLimit)
	{
		// GET /api/profile/status		-> Returns the link state of the caller
		p.GET("/status", func(c *gin.Context) { profile.Status(c, d) })

		// PATCH /api/profile			-> Updates branch and year
		p.PATCH("", func(c *gin.Context) { profile.Update(c, d) })

		// POST /api/profile/link		-> Links a profile and imports its scores
		p.POST("/link", turnstile, func(c *gin.Context) { profile.Link(c, d) })

		// POST /api/profile/refresh		-> Re-imports the linked profile's scores
		p.POST("/refresh", func(c *gin.Context) { profile.Refresh(c, d) })

		// POST /api/profile/send-verification	-> Mails an email verification code
		p.POST("/send-verification", turnstile, func(c *gin.Context) { profile.SendVerification(c, d) })

		// POST /api/profile/verify-email	-> Checks an email verification code
		p.POST("/verify-email", func(c *gin.Context) { profile.VerifyEmail(c, d) })
	}

	return router
}

// perRequestHeaders are set fresh on every request and never replayed from cache
var perRequestHeaders = []string{
	middleware.RequestIDHeader,
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"Retry-After",
}

// cacheUnlessRefresh caches 2xx responses by request URI. Requests with
// refresh=true skip the cache entirely.
func cacheUnlessRefresh(ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	store := persist.NewMemoryStore(time.Minute)

	return cache.Cache(store, ttl,
		cache.WithDiscardHeaders(perRequestHeaders),
		cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
			if c.Query("refresh") == "true" {
				c.Header("Cache-Control", "no-cache")
				return false, cache.Strategy{}
			}

			return true, cache.Strategy{
				CacheKey:      c.Request.RequestURI,
				CacheStore:    store,
				CacheDuration: ttl,
			}
		}),
	)
}

// Serve runs router on addr until ctx is cancelled, then drains in-flight
// requests for up to grace
func Serve(ctx context.Context, router http.Handler, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve, %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
