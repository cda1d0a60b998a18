package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, email string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("email", logger.MaskEmail(email)),
		zap.Time("timestamp", at.UTC()),
	)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.Email, event.RegisteredAt)
	return nil
}

func (p *StubPublisher) PublishUserReverified(_ context.Context, event domain.UserReverifiedEvent) error {
	p.logEvent(EventUserReverified, event.Email, event.VerifiedAt)
	return nil
}

func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	p.logEvent(EventUserLoggedIn, event.Email, event.LoggedInAt)
	return nil
}

func (p *StubPublisher) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	p.logEvent(EventUserDeleted, event.Email, event.DeletedAt)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
