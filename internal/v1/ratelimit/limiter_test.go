package ratelimit

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/config"
)

func limiterConfig() *config.Config {
	return &config.Config{
		RateLimitWsIP:   "3-M",
		RateLimitWsUser: "2-M",
	}
}

func TestMemoryStoreLimitsPerIP(t *testing.T) {
	rl, err := NewRateLimiter(limiterConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := rl.AllowIP(ctx, "203.0.113.9")
		assert.True(t, ok, "request %d", i)
	}
	ok, retry := rl.AllowIP(ctx, "203.0.113.9")
	assert.False(t, ok)
	assert.Greater(t, retry.Seconds(), float64(0))

	// Another address has its own budget.
	ok, _ = rl.AllowIP(ctx, "203.0.113.10")
	assert.True(t, ok)
}

func TestMemoryStoreLimitsPerUser(t *testing.T) {
	rl, err := NewRateLimiter(limiterConfig(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	assertAllowed := func(want bool) {
		ok, _ := rl.AllowUser(ctx, "u1")
		assert.Equal(t, want, ok)
	}
	assertAllowed(true)
	assertAllowed(true)
	assertAllowed(false)
}

func TestRedisStoreLimits(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl, err := NewRateLimiter(limiterConfig(), client)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := rl.AllowUser(ctx, "u1")
		require.True(t, ok)
	}
	ok, _ := rl.AllowUser(ctx, "u1")
	assert.False(t, ok)

	// Keys carry the versioned prefix.
	found := false
	for _, key := range mr.Keys() {
		if len(key) > len("limiter:v1:") && key[:len("limiter:v1:")] == "limiter:v1:" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBrokenStoreFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl, err := NewRateLimiter(limiterConfig(), client)
	require.NoError(t, err)

	// With Redis gone, connection attempts are still admitted.
	mr.Close()
	ok, retry := rl.AllowIP(context.Background(), "203.0.113.9")
	assert.True(t, ok)
	assert.Zero(t, retry)
}

func TestInvalidRateRejected(t *testing.T) {
	cfg := limiterConfig()
	cfg.RateLimitWsIP = "not-a-rate"
	_, err := NewRateLimiter(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "WS IP rate")
}
