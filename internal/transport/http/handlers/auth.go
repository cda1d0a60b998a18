package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/core/domain"
)

// Authenticator performs direct password login.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.User, error)
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication endpoints.
func (h *AuthHandler) RegisterRoutes(r gin.IRoutes, middlewares ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, middlewares...), h.Login)
	r.POST("/login", chain...)
}

// Login godoc
// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, loginErrors) {
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, loginErrors, http.StatusInternalServerError, "An error occurred during login.")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:  true,
		Message:  "Login successful!",
		Username: user.Username,
		Email:    user.Email,
	})
}
