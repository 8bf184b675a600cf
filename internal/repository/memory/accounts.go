package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/repository"
)

// AccountRepository keeps account records in process memory. Records are stored in their flat
// persisted shape and converted on every read, matching the PostgreSQL store.
type AccountRepository struct {
	mu      sync.RWMutex
	records map[string]domain.AccountRecord
	locks   *keyedMutex
	now     func() time.Time
}

// NewAccountRepository returns an empty in-memory account store.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		records: make(map[string]domain.AccountRecord),
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// WithClock overrides the time source used for CreatedAt.
func (r *AccountRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// FindByEmail returns the account stored under email.
func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	rec, ok := r.records[email]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	account, err := rec.Account()
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Insert stores a new account, assigning ID and CreatedAt when empty.
func (r *AccountRepository) Insert(_ context.Context, account domain.Account) (*domain.Account, error) {
	if account.State == nil {
		return nil, domain.ErrInvalidAccountRecord
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[account.Email]; exists {
		return nil, repository.ErrConflict
	}
	r.records[account.Email] = account.Record()
	return &account, nil
}

// Update applies update to the record stored under email.
func (r *AccountRepository) Update(_ context.Context, email string, update domain.AccountUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[email]
	if !ok {
		return repository.ErrNotFound
	}
	if update.IsEmpty() {
		return nil
	}

	account, err := rec.Account()
	if err != nil {
		return err
	}
	r.records[email] = update.Apply(account).Record()
	return nil
}

// WithEmailLock serializes fn against every other critical section for the same email.
// Sections for different emails run concurrently.
func (r *AccountRepository) WithEmailLock(ctx context.Context, email string, fn func(ctx context.Context, accounts port.AccountRepository) error) error {
	unlock, err := r.locks.lock(ctx, email)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx, r)
}

// Len returns the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

var _ port.AccountRepository = (*AccountRepository)(nil)
