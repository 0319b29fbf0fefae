package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(NewRequestIDMiddleware())
	r.Use(mw...)

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/api/leaderboard/60s", ok)
	r.POST("/api/profile/link", ok)
	r.POST("/api/profile/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.String(http.StatusBadRequest, "bad")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/api/me", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.DiscordID+"|"+id.Name)
	})

	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	w := do(newEngine(), httptest.NewRequest(http.MethodGet, "/api/leaderboard/60s", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 10)
}

func TestSessionMiddleware(t *testing.T) {
	r := newEngine(NewSessionMiddleware(testSecret))

	withCookie := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		return req
	}

	t.Run("valid", func(t *testing.T) {
		token, err := IssueSession(testSecret, model.Identity{DiscordID: "123456789012345678", Name: "alice"}, time.Hour)
		require.NoError(t, err)

		w := do(r, withCookie(token))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "123456789012345678|alice", w.Body.String())
	})

	t.Run("missing cookie", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueSession(testSecret, model.Identity{DiscordID: "123456789012345678"}, -time.Minute)
		require.NoError(t, err)

		w := do(r, withCookie(token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueSession([]byte("other"), model.Identity{DiscordID: "123456789012345678"}, time.Hour)
		require.NoError(t, err)

		w := do(r, withCookie(token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no discord id", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(testSecret)
		require.NoError(t, err)

		w := do(r, withCookie(token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"discord_id": "123456789012345678",
		}).SignedString(testSecret)
		require.NoError(t, err)

		w := do(r, withCookie(token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimiterStrictPaths(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	defer store.Close()

	r := newEngine(RateLimiterMiddleware(RateLimiterConfig{
		Store:        store,
		Window:       time.Minute,
		DefaultLimit: 60,
		StrictLimit:  5,
		StrictPaths:  []string{"/profile/link", "/profile/refresh"},
	}))

	for i := 0; i < 5; i++ {
		w := do(r, httptest.NewRequest(http.MethodPost, "/api/profile/link", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/profile/link", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	// The default class has its own counter
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/leaderboard/60s", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r := newEngine(RateLimiterMiddleware(RateLimiterConfig{Store: failingStore{}}))

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/leaderboard/60s", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestSecurityHeaders(t *testing.T) {
	w := do(newEngine(NewSecurityHeadersMiddleware()), httptest.NewRequest(http.MethodGet, "/api/leaderboard/60s", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-src 'none'")
}

func TestBodySizeLimiter(t *testing.T) {
	r := newEngine(BodySizeLimiter(16))

	w := do(r, httptest.NewRequest(http.MethodPost, "/api/profile/echo", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/api/profile/echo", strings.NewReader(`{"a":"this body is far too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTurnstile(t *testing.T) {
	verifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(readAll(r), `"response":"good"`) {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer verifier.Close()

	r := newEngine(NewTurnstileMiddleware(TurnstileConfig{
		Enabled:   true,
		Secret:    "s",
		VerifyURL: verifier.URL,
	}))

	req := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/profile/link", nil)
		if token != "" {
			req.Header.Set(TurnstileHeader, token)
		}
		return req
	}

	assert.Equal(t, http.StatusBadRequest, do(r, req("")).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, req("bad")).Code)
	assert.Equal(t, http.StatusOK, do(r, req("good")).Code)

	disabled := newEngine(NewTurnstileMiddleware(TurnstileConfig{}))
	assert.Equal(t, http.StatusOK, do(disabled, req("")).Code)
}

func readAll(r *http.Request) string {
	b, _ := io.ReadAll(r.Body)
	return string(b)
}
