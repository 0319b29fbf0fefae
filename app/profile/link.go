package profile

import (
	"fmt"
	"net/http"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
)

type linkBody struct {
	MonkeyTypeUsername string `json:"monkeyTypeUsername"`
}

// Link binds a MonkeyType profile to the caller and imports its personal bests
func Link(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	var body linkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if body.MonkeyTypeUsername == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "MonkeyType username is required",
			"requestID": requestID,
		})
		return
	}

	username, err := validators.Username(body.MonkeyTypeUsername)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"code":      "INVALID_USERNAME",
			"requestID": requestID,
		})
		return
	}

	res, err := d.Ingestor.Link(c.Request.Context(), id, username)
	if err != nil {
		ingestError(c, d, err, requestID)
		return
	}

	msg := fmt.Sprintf("MonkeyType account linked successfully! Automatically imported %d category scores.", len(res.Scores))
	if res.NoScores() {
		msg = "MonkeyType account linked successfully! No scores found - make sure you have completed typing tests on MonkeyType."
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msg,
		"user": gin.H{
			"monkeyTypeUsername": res.User.LinkedUsername(),
			"scoresImported":     len(res.Scores),
		},
	})
}
