package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/repository"
)

func TestSessionService_CreateReadDestroy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.session.Create(ctx, "acc-1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), session.ExpiresAt)

	read, err := h.session.Read(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{AccountID: "acc-1", Email: "a@x.com"}, read.Principal())

	require.NoError(t, h.session.Destroy(ctx, session.Token))
	require.NoError(t, h.session.Destroy(ctx, session.Token))
	require.NoError(t, h.session.Destroy(ctx, "never-issued"))

	_, err = h.session.Read(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.Len(t, h.events.started, 1)
	require.Len(t, h.events.ended, 1)
	assert.Equal(t, "acc-1", h.events.ended[0].AccountID)
}

func TestSessionService_AbsoluteExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.session.Create(ctx, "acc-1", "a@x.com")
	require.NoError(t, err)

	// Reading does not extend the lifetime.
	h.clock.Advance(23 * time.Hour)
	_, err = h.session.Read(ctx, session.Token)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.session.Read(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_UnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.session.Read(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = h.session.Read(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_RetriesTokenCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tokens := []string{"dup", "dup", "unique"}
	h.session.newToken = func() (string, error) {
		token := tokens[0]
		tokens = tokens[1:]
		return token, nil
	}

	first, err := h.session.Create(ctx, "acc-1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "dup", first.Token)

	second, err := h.session.Create(ctx, "acc-2", "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "unique", second.Token)
}

type failingSessions struct{}

func (failingSessions) Create(context.Context, domain.Session) error { return errBoom }

func (failingSessions) Get(context.Context, string) (*domain.Session, error) { return nil, errBoom }

func (failingSessions) Delete(context.Context, string) error { return errBoom }

func TestSessionService_StoreFailures(t *testing.T) {
	service := NewSessionService(failingSessions{}, nil, nil, 0)
	ctx := context.Background()

	_, err := service.Create(ctx, "acc-1", "a@x.com")
	assert.ErrorIs(t, err, ErrStore)

	_, err = service.Read(ctx, "token")
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, errors.Is(err, ErrSessionNotFound))

	// A failed destroy is surfaced so the caller does not report a successful logout.
	assert.ErrorIs(t, service.Destroy(ctx, "token"), ErrStore)
	assert.Equal(t, DefaultSessionTTL, service.TTL())
}

func TestAccountService_Logout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.session.Create(ctx, "acc-1", "a@x.com")
	require.NoError(t, err)

	require.NoError(t, h.service.Logout(ctx, session.Token))
	_, err = h.sessions.Get(ctx, session.Token)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, h.service.Logout(ctx, session.Token))
}
