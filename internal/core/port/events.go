package port

import (
	"context"

	"github.com/arklim/weather-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishVerificationIssued(ctx context.Context, event domain.VerificationIssuedEvent) error
	PublishAccountVerified(ctx context.Context, event domain.AccountVerifiedEvent) error
	PublishSessionStarted(ctx context.Context, event domain.SessionStartedEvent) error
	PublishSessionEnded(ctx context.Context, event domain.SessionEndedEvent) error
}
