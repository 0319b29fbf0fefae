package profile

import (
	"errors"
	"net/http"
	"time"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/store"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type updateBody struct {
	Branch *string `json:"branch"`
	Year   *int    `json:"year"`
}

// Update changes the academic details shown next to the caller's scores
func Update(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	u, err := d.Store.FindUserByDiscordID(c.Request.Context(), id.DiscordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "User not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	branch, year := u.Branch, u.Year

	if body.Branch != nil {
		branch, err = validators.Branch(*body.Branch)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
	}

	if body.Year != nil {
		if err := validators.Year(*body.Year); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
		year = *body.Year
	}

	if err := d.Store.UpdateProfile(c.Request.Context(), id.DiscordID, branch, year, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update profile", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated",
		"branch":  branch,
		"year":    year,
	})
}
