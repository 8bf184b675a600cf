package port

import (
	"context"

	"github.com/arklim/weather-auth/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	// Get returns repository.ErrNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*domain.Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
}
