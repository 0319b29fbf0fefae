package profile

import (
	"net/http"

	"typeboard/leaderboard-api/internal"

	"github.com/gin-gonic/gin"
)

// Refresh re-imports the personal bests of the caller's linked profile
func Refresh(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	res, err := d.Ingestor.Refresh(c.Request.Context(), id)
	if err != nil {
		ingestError(c, d, err, requestID)
		return
	}

	msg := "Scores refreshed successfully"
	if res.NoScores() {
		msg = "Scores refreshed, but no scores were found on your profile"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       msg,
		"scoresUpdated": len(res.Scores),
		"scores":        res.Scores,
	})
}
