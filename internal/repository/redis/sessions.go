package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/repository"
)

const defaultSessionPrefix = "weather:session"

// sessionPayload is the JSON document stored per session. The token itself is never stored;
// the key carries its SHA-256 hash.
type sessionPayload struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRepository persists sessions in Redis with a key TTL equal to their remaining lifetime.
type SessionRepository struct {
	client red.Cmdable
	prefix string
	now    func() time.Time
}

// NewSessionRepository constructs a Redis-backed session store.
func NewSessionRepository(client red.Cmdable, keyPrefix string) *SessionRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}

	return &SessionRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Create stores session until its expiry. An existing entry for the same token is a conflict.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	key := r.key(session.Token)
	if key == "" {
		return fmt.Errorf("session token is required")
	}

	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	payload, err := json.Marshal(sessionPayload{
		AccountID: session.AccountID,
		Email:     session.Email,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

// Get loads the session for token. Unknown and expired sessions yield repository.ErrNotFound.
func (r *SessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	key := r.key(token)
	if key == "" {
		return nil, repository.ErrNotFound
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	session := domain.Session{
		Token:     token,
		AccountID: payload.AccountID,
		Email:     payload.Email,
		CreatedAt: payload.CreatedAt,
		ExpiresAt: payload.ExpiresAt,
	}
	// Key expiry has millisecond granularity; the stored deadline is authoritative.
	if !session.IsActive(r.now()) {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

// Delete removes the session for token. Missing sessions are not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	key := r.key(token)
	if key == "" {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) key(token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, security.HashToken(token))
}

var _ port.SessionRepository = (*SessionRepository)(nil)
