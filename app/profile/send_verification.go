package profile

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/service"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sendVerificationBody struct {
	EduEmail string `json:"eduEmail"`
}

// SendVerification mails a code proving ownership of an institutional address
func SendVerification(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	var body sendVerificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email, err := validators.EduEmail(body.EduEmail, d.EmailDomain)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, validators.ErrEmailDomain) {
			msg = "Please use a valid email address ending with @" + d.EmailDomain
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     msg,
			"requestID": requestID,
		})
		return
	}

	expiresAt, err := d.Verifier.Send(c.Request.Context(), id, email)
	if err != nil {
		var cooldown *service.CooldownError

		switch {
		case errors.As(err, &cooldown):
			c.Header("Retry-After", strconv.Itoa(cooldown.Seconds()))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Please wait " + strconv.Itoa(cooldown.Seconds()) + " seconds before requesting another verification code",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrHourlyCap):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many verification attempts. Please try again in an hour.",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrDailyCap):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Daily limit reached. Please try again tomorrow.",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "User not found",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrEmailVerified):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "This email is already verified",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "This email is already verified by another account",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrMailFailed):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Failed to send verification email. Please try again.",
				"requestID": requestID,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to send verification code", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Verification code sent! Please check your email.",
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}
