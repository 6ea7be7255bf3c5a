//go:build integration

package results

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/config"
)

// setupRedis starts a Redis container for the test and returns its address.
func setupRedis(t *testing.T) string {
	ctx := context.Background()
	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})
	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisStore(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	s := NewRedis(client, time.Minute, "test:")

	ok := calculator.New().Evaluate("ok", "sqrt(16)+1")
	bad := calculator.New().Evaluate("bad", "sqrt(-1)")
	require.NoError(t, s.Put(ctx, "ok", Outcome{Result: ok}))
	require.NoError(t, s.Put(ctx, "bad", Outcome{Result: bad}))

	ttl, err := client.TTL(ctx, "test:ok").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	o, err := s.Take(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, 5.0, o.Result.Value)
	assert.True(t, o.Result.OK())
	assert.False(t, o.Finished.IsZero())

	o, err = s.Take(ctx, "bad")
	require.NoError(t, err)
	require.NotNil(t, o.Result.Err)
	assert.Equal(t, calculator.MathError, o.Result.Err.Kind)
	assert.Equal(t, "sqrt", o.Result.Err.Function)

	_, err = s.Take(ctx, "ok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisExpiry(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	s := NewRedis(client, time.Second, "test:")

	require.NoError(t, s.Put(ctx, "short", Outcome{Result: calculator.Result{ID: "short", Value: 1}}))
	assert.Eventually(t, func() bool {
		return client.Exists(ctx, "test:short").Val() == 0
	}, 5*time.Second, 100*time.Millisecond)
	_, err := s.Take(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenRedis(t *testing.T) {
	addr := setupRedis(t)
	cfg := config.Default().Results
	cfg.Backend = config.BackendRedis
	cfg.RedisAddr = addr
	s := Open(context.Background(), cfg)
	require.IsType(t, &Redis{}, s)
	assert.NoError(t, s.(*Redis).Close())
}
