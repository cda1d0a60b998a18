package port

import (
	"context"

	"github.com/arklim/otp-auth-service/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserReverified(ctx context.Context, event domain.UserReverifiedEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error
}
