package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/usecase"
)

// RegistrationFlow is the OTP-verified registration state machine.
type RegistrationFlow interface {
	RequestOTP(ctx context.Context, in usecase.RequestOTPInput) (usecase.Challenge, error)
	VerifyOTP(ctx context.Context, challengeID, code string) (time.Time, error)
	CompleteRegistration(ctx context.Context, in usecase.CompleteRegistrationInput) (domain.CommitResult, error)
}

// RegistrationHandler exposes the registration endpoints.
type RegistrationHandler struct {
	registration RegistrationFlow
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration RegistrationFlow) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/request-otp", h.RequestOTP)
	r.POST("/verify-otp", h.VerifyOTP)
	r.POST("/register-and-verify", h.RegisterAndVerify)
}

// RequestOTP godoc
// @Summary Start a registration
// @Description Hashes the password, emails a one-time code and returns the challenge to answer.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RequestOTPRequest true "Registration form"
// @Success 200 {object} RequestOTPResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /request-otp [post]
func (h *RegistrationHandler) RequestOTP(c *gin.Context) {
	var req RequestOTPRequest
	if !bindJSON(c, &req, requestOTPErrors) {
		return
	}

	challenge, err := h.registration.RequestOTP(c.Request.Context(), usecase.RequestOTPInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, requestOTPErrors, http.StatusInternalServerError, "Failed to send OTP. Please try again later.")
		return
	}

	c.JSON(http.StatusOK, RequestOTPResponse{
		Success:     true,
		Message:     "OTP sent to your email.",
		ChallengeID: challenge.ID,
		ExpiresAt:   challenge.ExpiresAt.UTC().Format(timestampLayout),
	})
}

// VerifyOTP godoc
// @Summary Verify a one-time code
// @Description Matches the code against the challenge. A match opens the commit window.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Challenge answer"
// @Success 200 {object} VerifyOTPResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /verify-otp [post]
func (h *RegistrationHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !bindJSON(c, &req, challengeErrors) {
		return
	}

	deadline, err := h.registration.VerifyOTP(c.Request.Context(), req.ChallengeID, req.OTP)
	if err != nil {
		RespondWithMappedError(c, err, challengeErrors, http.StatusInternalServerError, "Failed to verify OTP.")
		return
	}

	c.JSON(http.StatusOK, VerifyOTPResponse{
		Success:        true,
		Message:        "OTP verified.",
		CommitDeadline: deadline.UTC().Format(timestampLayout),
	})
}

// RegisterAndVerify godoc
// @Summary Commit a verified registration
// @Description Consumes the challenge and stores the registration held by the server.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegisterAndVerifyRequest true "Commit request"
// @Success 200 {object} RegisterAndVerifyResponse "existing user re-verified"
// @Success 201 {object} RegisterAndVerifyResponse "new user created"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /register-and-verify [post]
func (h *RegistrationHandler) RegisterAndVerify(c *gin.Context) {
	var req RegisterAndVerifyRequest
	if !bindJSON(c, &req, challengeErrors) {
		return
	}

	result, err := h.registration.CompleteRegistration(c.Request.Context(), usecase.CompleteRegistrationInput{
		ChallengeID: req.ChallengeID,
		OTP:         req.OTP,
		Email:       req.Email,
	})
	if err != nil {
		RespondWithMappedError(c, err, challengeErrors, http.StatusInternalServerError, "Failed to save credentials to database.")
		return
	}

	if !result.Created {
		c.JSON(http.StatusOK, RegisterAndVerifyResponse{
			Success:    true,
			Message:    "User already exists and verified.",
			UserExists: true,
		})
		return
	}

	c.JSON(http.StatusCreated, RegisterAndVerifyResponse{
		Success:    true,
		Message:    "New user registered and verified.",
		UserExists: false,
	})
}
