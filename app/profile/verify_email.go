package profile

import (
	"errors"
	"net/http"

	"typeboard/leaderboard-api/internal"
	"typeboard/leaderboard-api/internal/service"
	"typeboard/leaderboard-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type verifyEmailBody struct {
	VerificationCode string `json:"verificationCode"`
}

var verifyMessages = map[error]struct {
	status int
	msg    string
}{
	service.ErrUserNotFound:        {http.StatusNotFound, "User not found"},
	service.ErrNoCode:              {http.StatusBadRequest, "No verification code found. Please request a new code."},
	service.ErrCodeExpired:         {http.StatusBadRequest, "Verification code has expired. Please request a new code."},
	service.ErrCodeMismatch:        {http.StatusBadRequest, "Invalid verification code. Please check and try again."},
	service.ErrTooManyCodeAttempts: {http.StatusTooManyRequests, "Too many invalid codes. Please request a new code."},
	service.ErrAlreadyVerified:     {http.StatusBadRequest, "Email is already verified"},
}

// VerifyEmail checks a mailed code and grants the verified badge
func VerifyEmail(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := identity(c, requestID)
	if !ok {
		return
	}

	var body verifyEmailBody
	if err := c.ShouldBindJSON(&body); err != nil || body.VerificationCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Verification code is required",
			"requestID": requestID,
		})
		return
	}

	code, err := validators.VerificationCode(body.VerificationCode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Verification code must be 6 digits",
			"requestID": requestID,
		})
		return
	}

	u, err := d.Verifier.Verify(c.Request.Context(), id, code)
	if err != nil {
		for target, m := range verifyMessages {
			if errors.Is(err, target) {
				c.JSON(m.status, gin.H{
					"error":     m.msg,
					"requestID": requestID,
				})
				return
			}
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify email", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Email verified successfully! You now have the verified badge.",
		"eduEmail": u.EduEmail,
		"verified": true,
	})
}
