package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	EventUserRegistered = "user.registered"
	EventUserReverified = "user.reverified"
	EventUserLoggedIn   = "user.logged_in"
	EventUserDeleted    = "user.deleted"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// publish keys every message by email so events for one account stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, email string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(email),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		Email        string    `json:"email"`
		Username     string    `json:"username"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		Email:        event.Email,
		Username:     event.Username,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.Email, event.RegisteredAt, payload)
}

// PublishUserReverified publishes user.reverified events.
func (p *EventPublisher) PublishUserReverified(ctx context.Context, event domain.UserReverifiedEvent) error {
	payload := struct {
		Email      string    `json:"email"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		Email:      event.Email,
		VerifiedAt: event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserReverified, event.Email, event.VerifiedAt, payload)
}

// PublishUserLoggedIn publishes user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	payload := struct {
		Email      string    `json:"email"`
		LoggedInAt time.Time `json:"logged_in_at"`
	}{
		Email:      event.Email,
		LoggedInAt: event.LoggedInAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserLoggedIn, event.Email, event.LoggedInAt, payload)
}

// PublishUserDeleted publishes user.deleted events.
func (p *EventPublisher) PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error {
	payload := struct {
		Email     string    `json:"email"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		Email:     event.Email,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserDeleted, event.Email, event.DeletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
