package port

import (
	"context"
	"time"

	"github.com/arklim/otp-auth-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for users keyed by email.
type UserRepository interface {
	// Create inserts a new record. Implementations return repository.ErrConflict
	// when a record with the same email already exists.
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchVerified(ctx context.Context, email string, at time.Time) error
	TouchLogin(ctx context.Context, email string, at time.Time) error
	List(ctx context.Context) ([]domain.User, error)
	// DeleteByEmail returns repository.ErrNotFound when no row was removed.
	DeleteByEmail(ctx context.Context, email string) error
}
