package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/infra/telemetry"
	"github.com/arklim/weather-auth/internal/repository"
)

const (
	// DefaultSessionTTL is the absolute lifetime of a session.
	DefaultSessionTTL = 24 * time.Hour

	sessionReasonVerification = "verification"
	sessionReasonLogin        = "login"

	maxTokenAttempts = 3
)

// SessionService issues, resolves and destroys server-side sessions.
type SessionService struct {
	sessions port.SessionRepository
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  *telemetry.AuthMetrics
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewSessionService constructs a SessionService whose sessions live for ttl.
func NewSessionService(sessions port.SessionRepository, events port.EventPublisher, logger *zap.Logger, ttl time.Duration) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		sessions: sessions,
		events:   events,
		logger:   logger,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.GenerateSessionToken,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches auth metrics.
func (s *SessionService) WithMetrics(metrics *telemetry.AuthMetrics) *SessionService {
	s.metrics = metrics
	return s
}

// TTL returns the absolute session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for the account and returns it with its token.
func (s *SessionService) Create(ctx context.Context, accountID, email string) (*domain.Session, error) {
	return s.start(ctx, accountID, email, sessionReasonLogin)
}

func (s *SessionService) start(ctx context.Context, accountID, email, reason string) (*domain.Session, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	now := s.now()
	session := domain.Session{
		AccountID: accountID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		session.Token, err = s.newToken()
		if err != nil {
			return nil, fmt.Errorf("generate session token: %w", err)
		}
		err = s.sessions.Create(ctx, session)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrStore, err)
	}

	s.metrics.ObserveSessionCreated()
	s.publishStarted(ctx, session, reason)

	return &session, nil
}

// Read resolves token to its session. Unknown and expired tokens yield ErrSessionNotFound.
func (s *SessionService) Read(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: read session: %w", ErrStore, err)
	}
	if !session.IsActive(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Destroy ends the session for token. Destroying an unknown token succeeds.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: load session: %w", ErrStore, err)
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: delete session: %w", ErrStore, err)
	}

	if session != nil {
		s.publishEnded(ctx, *session)
	}
	return nil
}

func (s *SessionService) publishStarted(ctx context.Context, session domain.Session, reason string) {
	if s.events == nil {
		return
	}
	event := domain.SessionStartedEvent{
		EventID:   uuid.NewString(),
		AccountID: session.AccountID,
		Reason:    reason,
		StartedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	if err := s.events.PublishSessionStarted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session started event",
			zap.String("account_id", session.AccountID),
			zap.Error(err),
		)
	}
}

func (s *SessionService) publishEnded(ctx context.Context, session domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.SessionEndedEvent{
		EventID:   uuid.NewString(),
		AccountID: session.AccountID,
		EndedAt:   s.now(),
	}
	if err := s.events.PublishSessionEnded(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session ended event",
			zap.String("account_id", session.AccountID),
			zap.Error(err),
		)
	}
}
