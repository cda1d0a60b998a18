package port

import (
	"context"
	"time"

	"github.com/arklim/otp-auth-service/internal/core/domain"
)

// ChallengeStore holds pending registrations server-side until they are committed or expire.
type ChallengeStore interface {
	Save(ctx context.Context, pending domain.PendingRegistration) error
	Get(ctx context.Context, challengeID string) (*domain.PendingRegistration, error)
	IncrementAttempts(ctx context.Context, challengeID string) (int, error)
	// MarkVerified moves the challenge to pending_commit with a new deadline.
	MarkVerified(ctx context.Context, challengeID string, expiresAt time.Time) error
	// Consume atomically fetches and removes the challenge. Only one caller can win.
	Consume(ctx context.Context, challengeID string) (*domain.PendingRegistration, error)
	Delete(ctx context.Context, challengeID string) error
}
