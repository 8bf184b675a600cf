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

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, relative to the configured topic prefix.
const (
	EventAccountRegistered  = "account.registered"
	EventVerificationIssued = "account.verification_issued"
	EventAccountVerified    = "account.verified"
	EventSessionStarted     = "session.started"
	EventSessionEnded       = "session.ended"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

var _ port.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger, now: time.Now}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = p.now()
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

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		Reregistered bool      `json:"reregistered"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		Reregistered: event.Reregistered,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

func (p *EventPublisher) PublishVerificationIssued(ctx context.Context, event domain.VerificationIssuedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Email     string    `json:"email"`
		Reason    string    `json:"reason"`
		IssuedAt  time.Time `json:"issued_at"`
		ExpiresAt time.Time `json:"expires_at"`
		Delivered bool      `json:"delivered"`
	}{
		AccountID: event.AccountID,
		Email:     event.Email,
		Reason:    event.Reason,
		IssuedAt:  event.IssuedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
		Delivered: event.Delivered,
	}

	return p.publish(ctx, event.EventID, EventVerificationIssued, event.AccountID, event.IssuedAt, payload)
}

func (p *EventPublisher) PublishAccountVerified(ctx context.Context, event domain.AccountVerifiedEvent) error {
	payload := struct {
		AccountID  string    `json:"account_id"`
		Email      string    `json:"email"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		AccountID:  event.AccountID,
		Email:      event.Email,
		VerifiedAt: event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountVerified, event.AccountID, event.VerifiedAt, payload)
}

// PublishSessionStarted never carries the session token.
func (p *EventPublisher) PublishSessionStarted(ctx context.Context, event domain.SessionStartedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Reason    string    `json:"reason"`
		StartedAt time.Time `json:"started_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		AccountID: event.AccountID,
		Reason:    event.Reason,
		StartedAt: event.StartedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionStarted, event.AccountID, event.StartedAt, payload)
}

func (p *EventPublisher) PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		EndedAt   time.Time `json:"ended_at"`
	}{
		AccountID: event.AccountID,
		EndedAt:   event.EndedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventSessionEnded, event.AccountID, event.EndedAt, payload)
}
