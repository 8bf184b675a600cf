package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It is used when
// no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}

	p.logger.Debug("stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("account_id", accountID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt,
		logger.EmailField(event.Email),
		zap.Bool("reregistered", event.Reregistered),
	)
	return nil
}

func (p *StubPublisher) PublishVerificationIssued(_ context.Context, event domain.VerificationIssuedEvent) error {
	p.logEvent(EventVerificationIssued, event.AccountID, event.IssuedAt,
		zap.String("reason", event.Reason),
		zap.Bool("delivered", event.Delivered),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishAccountVerified(_ context.Context, event domain.AccountVerifiedEvent) error {
	p.logEvent(EventAccountVerified, event.AccountID, event.VerifiedAt, logger.EmailField(event.Email))
	return nil
}

func (p *StubPublisher) PublishSessionStarted(_ context.Context, event domain.SessionStartedEvent) error {
	p.logEvent(EventSessionStarted, event.AccountID, event.StartedAt,
		zap.String("reason", event.Reason),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	p.logEvent(EventSessionEnded, event.AccountID, event.EndedAt)
	return nil
}
