package profile

import (
	"errors"
	"net/http"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Status reports whether the caller has linked a profile
func Status(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	u, err := d.Store.FindUserByDiscordID(c.Request.Context(), id.DiscordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"isLinked":           false,
				"monkeyTypeUsername": nil,
				"isVerified":         false,
				"verificationStatus": model.StatusPending,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch profile status", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isLinked":           u.MonkeyTypeUsername != nil,
		"monkeyTypeUsername": u.MonkeyTypeUsername,
		"isVerified":         u.IsVerified,
		"verificationStatus": u.VerificationStatus,
		"branch":             u.Branch,
		"year":               u.Year,
		"eduEmailVerified":   u.EduEmailVerified,
	})
}
