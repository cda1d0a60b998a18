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

// AuthService verifies returning users by email and password.
type AuthService struct {
	users   port.UserRepository
	hasher  port.PasswordHasher
	events  port.EventPublisher
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(users port.UserRepository, hasher port.PasswordHasher, events port.EventPublisher, metrics Metrics, logger *zap.Logger) *AuthService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Login looks the user up, verifies the password and records the login time.
// The returned user carries no password hash.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, error) {
	ctx, span := tracer().Start(ctx, "AuthService.Login")
	defer span.End()

	email, err := requireField("email", email)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := requireField("password", password); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveLogin(OutcomeNotFound)
			return domain.User{}, ErrUserNotFound
		}
		s.metrics.ObserveLogin(OutcomeError)
		return domain.User{}, fmt.Errorf("%w: lookup user: %v", ErrDependencyUnavailable, err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
	if err != nil || !ok {
		s.metrics.ObserveLogin(OutcomeRejected)
		return domain.User{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, email, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveLogin(OutcomeNotFound)
			return domain.User{}, ErrUserNotFound
		}
		s.metrics.ObserveLogin(OutcomeError)
		return domain.User{}, fmt.Errorf("%w: record login: %v", ErrDependencyUnavailable, err)
	}
	user.LastLoginAt = &now

	s.metrics.ObserveLogin(OutcomeSuccess)

	if s.events != nil {
		if err := s.events.PublishUserLoggedIn(ctx, domain.UserLoggedInEvent{
			EventID:    uuid.NewString(),
			Email:      email,
			LoggedInAt: now,
		}); err != nil {
			s.logger.Warn("publish user logged in event failed", zap.Error(err))
		}
	}

	return user.Sanitized(), nil
}
