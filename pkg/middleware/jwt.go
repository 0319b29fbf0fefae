package middleware

import (
	"fmt"
	"net/http"
	"time"

	"typeboard/leaderboard-api/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	SessionCookie = "auth_token"
	identityKey   = "identity"
)

// NewSessionMiddleware rejects requests without a valid session cookie. The
// cookie is issued by the Discord login flow and carries the verified
// identity, which is stored in the context for the handlers.
func NewSessionMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		tokenStr, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": requestID,
			})
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}

			return secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization token invalid",
				"requestID": requestID,
			})

			zap.L().Debug("Rejected session token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Authorization token invalid",
				"requestID": requestID,
			})
			return
		}

		discordID, _ := claims["discord_id"].(string)
		if discordID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": requestID,
			})
			return
		}

		name, _ := claims["name"].(string)
		avatar, _ := claims["avatar"].(string)

		c.Set(identityKey, model.Identity{
			DiscordID: discordID,
			Name:      name,
			Avatar:    avatar,
		})
		c.Next()
	}
}

// IdentityFrom returns the identity stored by the session middleware
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}

	id, ok := v.(model.Identity)
	return id, ok
}

// IssueSession signs a session token for id that expires after ttl
func IssueSession(secret []byte, id model.Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"discord_id": id.DiscordID,
		"name":       id.Name,
		"avatar":     id.Avatar,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token, %w", err)
	}

	return signed, nil
}
