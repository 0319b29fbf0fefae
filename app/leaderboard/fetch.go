// Package leaderboard contains the public leaderboard handlers
package leaderboard

import (
	"net/http"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Fetch returns one page of the ranked personal bests of a category
func Fetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	cat, err := validators.Category(c.Param("category"), d.TrackWords)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	page, limit, err := validators.Pagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	p, err := d.Ranker.Page(c.Request.Context(), cat, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch leaderboard", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, p)
}
