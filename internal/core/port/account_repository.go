package port

import (
	"context"

	"github.com/arklim/weather-auth/internal/core/domain"
)

// AccountRepository persists account records keyed by email.
type AccountRepository interface {
	// FindByEmail returns repository.ErrNotFound when no record exists.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Insert assigns ID and CreatedAt when empty and returns the stored account.
	// A duplicate email yields repository.ErrConflict.
	Insert(ctx context.Context, account domain.Account) (*domain.Account, error)
	// Update returns repository.ErrNotFound when no record exists for email.
	Update(ctx context.Context, email string, update domain.AccountUpdate) error
	// WithEmailLock runs fn while holding an exclusive lock on email. The repository passed to
	// fn must be used for every read and write belonging to the critical section.
	WithEmailLock(ctx context.Context, email string, fn func(ctx context.Context, accounts AccountRepository) error) error
}
