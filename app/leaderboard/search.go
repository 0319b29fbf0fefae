package leaderboard

import (
	"net/http"
	"strconv"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/search"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Search looks players up by Discord or profile username
func Search(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	fail := func(err error) {
		c.JSON(http.StatusBadRequest, gin.H{
			"results":   []search.Result{},
			"error":     err.Error(),
			"requestID": requestID,
		})
	}

	query, err := validators.SearchQuery(c.Query("q"))
	if err != nil {
		fail(err)
		return
	}

	cat, err := validators.Category(c.DefaultQuery("category", "30s"), d.TrackWords)
	if err != nil {
		fail(err)
		return
	}

	limit := search.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			fail(validators.ErrLimitInvalid)
			return
		}
	}

	mode := search.ModePartial
	if c.Query("fuzzy") == "true" {
		mode = search.ModeFuzzy
	}

	results, err := d.Search.Search(c.Request.Context(), query, cat, mode, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Search failed",
			"requestID": requestID,
		})

		zap.L().Error("Search failed", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":        query,
		"category":     cat,
		"searchType":   mode,
		"totalResults": len(results),
		"results":      results,
	})
}
