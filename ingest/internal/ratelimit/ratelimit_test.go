package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, limit, window), mr
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	for _, key := range []string{"203.0.113.7", ""} {
		for i := 0; i < 10; i++ {
			allowed, err := limiter.Allow(context.Background(), key)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	}
}

func TestRedisRateLimiter_Limit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, allowed, "keys are limited independently")
}

func TestRedisRateLimiter_WindowSlides(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	start := time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return start }

	allowed, err := limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, allowed)

	limiter.now = func() time.Time { return start.Add(30 * time.Second) }
	allowed, err = limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, allowed)

	limiter.now = func() time.Time { return start.Add(61 * time.Second) }
	allowed, err = limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_SetsExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5, 10*time.Second)

	_, err := limiter.Allow(context.Background(), "client")
	require.NoError(t, err)

	assert.True(t, mr.Exists(DefaultKeyPrefix+"client"))
	assert.Equal(t, 11*time.Second, mr.TTL(DefaultKeyPrefix+"client"))
}

func TestRedisRateLimiter_BackendDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5, time.Minute)
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "client")
	assert.Error(t, err)
	assert.False(t, allowed)
}
