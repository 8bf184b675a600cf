package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/weather-auth/internal/infra/config"
)

func settingsFor(t *testing.T, mr *miniredis.Miniredis) config.RedisSettings {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisSettings{Host: mr.Host(), Port: port}
}

func TestNewClientPingsAndReportsHealth(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewClient(context.Background(), settingsFor(t, mr), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.HealthCheck(context.Background()))
	require.NoError(t, client.Cmdable().Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))

	mr.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := settingsFor(t, mr)
	mr.Close()

	_, err = NewClient(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOptionsDefaults(t *testing.T) {
	opts := options(config.RedisSettings{Host: "cache.internal", Port: 6380, TLSEnabled: true})
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, defaultPoolSize, opts.PoolSize)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "cache.internal", opts.TLSConfig.ServerName)
}
