// Package profile contains the handlers acting on the caller's own account
package profile

import (
	"errors"
	"fmt"
	"net/http"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/model"
	"typeboard/leaderboard-api/internal/service"
	"typeboard/leaderboard-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// identity returns the session identity or answers 401
func identity(c *gin.Context, requestID string) (model.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Unauthorized",
			"requestID": requestID,
		})
	}

	return id, ok
}

// ingestError answers a failed link or refresh. Internal failures are logged
// and reported without detail.
func ingestError(c *gin.Context, d *internal.Deps, err error, requestID string) {
	status, msg, code := http.StatusInternalServerError, "Internal server error", ""

	var linked *service.AlreadyLinkedError

	switch {
	case errors.As(err, &linked):
		status, code = http.StatusConflict, "ALREADY_VERIFIED_DIFFERENT_ACCOUNT"
		msg = fmt.Sprintf("You already have a verified MonkeyType account linked: %s. Contact support if you need to change it.", linked.Username)
	case errors.Is(err, service.ErrUsernameAlreadyClaimed):
		status, code = http.StatusConflict, "USERNAME_ALREADY_CLAIMED"
		msg = "This MonkeyType username is already linked to another verified account. If this is your account, please contact support."
	case errors.Is(err, service.ErrUsernameConflict):
		status, code = http.StatusConflict, "USERNAME_CONFLICT"
		msg = "This MonkeyType username is already associated with another account. Each MonkeyType profile can only be linked once."
	case errors.Is(err, service.ErrIngestionBusy):
		status, code = http.StatusConflict, "INGESTION_BUSY"
		msg = "A score import for your account is already running"
	case errors.Is(err, service.ErrProfileNotFound):
		status, code = http.StatusNotFound, "PROFILE_NOT_FOUND"
		msg = "MonkeyType profile not found or not public"
	case errors.Is(err, service.ErrBioMarkerMissing):
		status, code = http.StatusBadRequest, "BIO_MARKER_MISSING"
		msg = fmt.Sprintf("Please add %q to your MonkeyType bio for verification", d.BioMarker)
	case errors.Is(err, service.ErrInvalidUsername):
		status, code = http.StatusBadRequest, "INVALID_USERNAME"
		msg = "Invalid MonkeyType username"
	case errors.Is(err, service.ErrNotLinked):
		status, code = http.StatusBadRequest, "NOT_LINKED"
		msg = "No MonkeyType account linked"
	case errors.Is(err, service.ErrFetchFailed):
		status, code = http.StatusBadRequest, "FETCH_FAILED"
		msg = "Failed to fetch scores from MonkeyType"
	default:
		zap.L().Error("Profile ingestion failed", zap.Error(err), zap.String("requestID", requestID))
	}

	body := gin.H{
		"error":     msg,
		"requestID": requestID,
	}
	if code != "" {
		body["code"] = code
	}

	c.JSON(status, body)
}
