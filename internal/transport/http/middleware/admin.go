package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/infra/security"
)

// AdminAuthorizer decides whether a presented credential grants the admin capability.
type AdminAuthorizer interface {
	Authorize(credential string) error
}

// ErrorResponse matches the handlers.ErrorResponse envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Message: message,
		TraceID: GetTraceID(c),
	})
}

// RequireAdmin guards administrative routes with a bearer credential.
// A missing or malformed header yields 401, a credential the policy rejects yields 403.
func RequireAdmin(policy AdminAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if policy == nil {
			abortWithError(c, http.StatusForbidden, "administration is disabled")
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		scheme, credential, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			abortWithError(c, http.StatusUnauthorized, "invalid authorization format: expected 'Bearer <token>'")
			return
		}

		err := policy.Authorize(strings.TrimSpace(credential))
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, security.ErrAdminCredentialMissing):
			abortWithError(c, http.StatusUnauthorized, "missing admin credential")
		default:
			abortWithError(c, http.StatusForbidden, "admin credential rejected")
		}
	}
}
