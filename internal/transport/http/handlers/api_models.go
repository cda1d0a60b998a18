package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/otp-auth-service/internal/core/domain"
)

// notAvailable renders absent timestamps in user listings.
const notAvailable = "N/A"

// timestampLayout is RFC 3339 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the failure envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Success: false,
		Message: message,
		TraceID: traceIDStr,
	}
}

// MessageResponse is the minimal success envelope.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func okMessage(message string) MessageResponse {
	return MessageResponse{Success: true, Message: message}
}

// RequestOTPRequest starts a registration.
type RequestOTPRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RequestOTPResponse identifies the challenge the client must answer.
type RequestOTPResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ChallengeID string `json:"challengeId"`
	ExpiresAt   string `json:"expiresAt"`
}

// VerifyOTPRequest submits a code for a challenge.
type VerifyOTPRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
}

// VerifyOTPResponse reports the instant by which the registration must be committed.
type VerifyOTPResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CommitDeadline string `json:"commitDeadline"`
}

// RegisterAndVerifyRequest commits a verified challenge. OTP is optional when
// the code was already accepted by /verify-otp. Email, when sent, must match the challenge.
type RegisterAndVerifyRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	OTP         string `json:"otp,omitempty"`
	Email       string `json:"email,omitempty" binding:"omitempty,email"`
}

// RegisterAndVerifyResponse reports whether the commit created a user.
type RegisterAndVerifyResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	UserExists bool   `json:"userExists"`
}

// LoginRequest authenticates a user directly by password.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse identifies the logged-in user.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserView is the administrative listing row. The password hash is never rendered.
type UserView struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	CreatedAt      string `json:"createdAt"`
	LastVerifiedAt string `json:"lastVerifiedAt"`
	LastLoginAt    string `json:"lastLoginAt"`
}

// UserListResponse wraps the administrative listing.
type UserListResponse struct {
	Success bool       `json:"success"`
	Users   []UserView `json:"users"`
}

func newUserView(u domain.User) UserView {
	view := UserView{
		Email:          u.Email,
		Username:       u.Username,
		CreatedAt:      formatTimestamp(u.CreatedAt),
		LastVerifiedAt: formatTimestamp(u.LastVerifiedAt),
		LastLoginAt:    notAvailable,
	}
	if u.LastLoginAt != nil {
		view.LastLoginAt = formatTimestamp(*u.LastLoginAt)
	}
	return view
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(timestampLayout)
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse lists dependency check results.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
