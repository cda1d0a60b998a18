package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
	"github.com/arklim/otp-auth-service/internal/repository"
)

// UserService backs the administrative endpoints.
type UserService struct {
	users  port.UserRepository
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService constructs UserService.
func NewUserService(users port.UserRepository, events port.EventPublisher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:  users,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListUsers returns every user without password hashes.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer().Start(ctx, "UserService.ListUsers")
	defer span.End()

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrDependencyUnavailable, err)
	}

	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// DeleteUser removes exactly the record keyed by email.
func (s *UserService) DeleteUser(ctx context.Context, email string) error {
	ctx, span := tracer().Start(ctx, "UserService.DeleteUser")
	defer span.End()

	email, err := requireField("email", email)
	if err != nil {
		return err
	}

	if err := s.users.DeleteByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: delete user: %v", ErrDependencyUnavailable, err)
	}

	now := s.now()
	s.logger.Info("user deleted", zap.String("email", logger.MaskEmail(email)))

	if s.events != nil {
		if err := s.events.PublishUserDeleted(ctx, domain.UserDeletedEvent{
			EventID:   uuid.NewString(),
			Email:     email,
			DeletedAt: now,
		}); err != nil {
			s.logger.Warn("publish user deleted event failed", zap.Error(err))
		}
	}

	return nil
}
