package usecase

import "errors"

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound indicates no user exists for the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates the password did not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict indicates a concurrent registration stored the email first.
	ErrConflict = errors.New("user already exists")
	// ErrChallengeNotFound indicates the challenge id is unknown or already evicted.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeUsed indicates the challenge already matched and cannot be verified again.
	ErrChallengeUsed = errors.New("challenge already used")
	// ErrChallengeNotVerified indicates a commit was attempted before the code matched.
	ErrChallengeNotVerified = errors.New("challenge not verified")
	// ErrOTPExpired indicates the validity window passed. The challenge is discarded.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPMismatch indicates the candidate code did not match. Retry is allowed.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrTooManyAttempts indicates the mismatch limit was reached. The challenge is discarded.
	ErrTooManyAttempts = errors.New("too many otp attempts")
	// ErrDeliveryFailed indicates the code could not be sent.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrDependencyUnavailable indicates a backing store failed.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
