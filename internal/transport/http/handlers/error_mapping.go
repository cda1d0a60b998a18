package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message renders the error detail that follows the sentinel text.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Unmapped errors are attached to the gin context so the access log records them; their text is never returned.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			if cs.Status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			message := cs.Message
			if message == "" {
				message = errorDetail(err, cs.Err)
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func errorDetail(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}

var requestOTPErrors = []ErrorCase{
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "Email, username, and password are required."},
	{Err: usecase.ErrDeliveryFailed, Status: http.StatusInternalServerError, Message: "Failed to send OTP. Please try again later."},
	{Err: usecase.ErrDependencyUnavailable, Status: http.StatusInternalServerError, Message: "Registration is temporarily unavailable."},
}

var challengeErrors = []ErrorCase{
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
	{Err: usecase.ErrOTPMismatch, Status: http.StatusBadRequest, Message: "Invalid OTP."},
	{Err: usecase.ErrChallengeNotVerified, Status: http.StatusBadRequest, Message: "OTP has not been verified for this challenge."},
	{Err: usecase.ErrChallengeNotFound, Status: http.StatusNotFound, Message: "Registration challenge not found."},
	{Err: usecase.ErrChallengeUsed, Status: http.StatusConflict, Message: "Registration challenge has already been used."},
	{Err: usecase.ErrConflict, Status: http.StatusConflict, Message: "An account with this email already exists."},
	{Err: usecase.ErrOTPExpired, Status: http.StatusGone, Message: "OTP expired. Please request a new one."},
	{Err: usecase.ErrTooManyAttempts, Status: http.StatusGone, Message: "Too many incorrect attempts. Please request a new OTP."},
	{Err: usecase.ErrDependencyUnavailable, Status: http.StatusInternalServerError, Message: "Failed to save credentials to database."},
}

var loginErrors = []ErrorCase{
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: "Email and password are required."},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found. Please sign up."},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Incorrect password."},
	{Err: usecase.ErrDependencyUnavailable, Status: http.StatusInternalServerError, Message: "An error occurred during login."},
}
