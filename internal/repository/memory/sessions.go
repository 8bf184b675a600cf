package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/repository"
)

// defaultSweepEvery is how many creates pass between scans for expired sessions.
const defaultSweepEvery = 64

// SessionRepository keeps sessions in process memory keyed by the hash of their token.
// Expired sessions are dropped when read and by a periodic sweep on create.
type SessionRepository struct {
	mu         sync.Mutex
	sessions   map[string]domain.Session
	now        func() time.Time
	creates    int
	sweepEvery int
}

// NewSessionRepository returns an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions:   make(map[string]domain.Session),
		now:        time.Now,
		sweepEvery: defaultSweepEvery,
	}
}

// WithClock overrides the time source used for expiry checks.
func (r *SessionRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Create stores session under the hash of its token.
func (r *SessionRepository) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creates++
	if r.sweepEvery > 0 && r.creates%r.sweepEvery == 0 {
		r.sweepExpired()
	}

	key := security.HashToken(session.Token)
	if _, exists := r.sessions[key]; exists {
		return repository.ErrConflict
	}
	session.Token = ""
	r.sessions[key] = session
	return nil
}

// sweepExpired drops every expired session. Callers hold r.mu.
func (r *SessionRepository) sweepExpired() {
	now := r.now()
	for key, session := range r.sessions {
		if !session.IsActive(now) {
			delete(r.sessions, key)
		}
	}
}

// Get returns the active session for token.
func (r *SessionRepository) Get(_ context.Context, token string) (*domain.Session, error) {
	key := security.HashToken(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !session.IsActive(r.now()) {
		delete(r.sessions, key)
		return nil, repository.ErrNotFound
	}

	session.Token = token
	return &session, nil
}

// Delete removes the session for token if present.
func (r *SessionRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, security.HashToken(token))
	return nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
