package domain

import "time"

// ChallengeState enumerates the stages of a pending registration.
type ChallengeState string

const (
	// ChallengeAwaitingOTP is the initial state, bound to an issued code and deadline.
	ChallengeAwaitingOTP ChallengeState = "awaiting_otp"
	// ChallengePendingCommit is reached once the code matched before the deadline.
	ChallengePendingCommit ChallengeState = "pending_commit"
)

// PendingRegistration is the server-held state binding an OTP to a registration attempt.
type PendingRegistration struct {
	ChallengeID  string
	Email        string
	Username     string
	PasswordHash string
	Code         string
	State        ChallengeState
	Attempts     int
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the deadline passed at the supplied instant.
func (p PendingRegistration) Expired(at time.Time) bool {
	return !at.Before(p.ExpiresAt)
}

// CommitResult reports the outcome of persisting a verified registration.
type CommitResult struct {
	User    User
	Created bool
}
