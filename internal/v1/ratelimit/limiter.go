// Package ratelimit implements connection-level rate limiting backed by
// Redis or local memory.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/rk9ine/skrawl-game-sub000/internal/v1/config"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/logging"
	"github.com/rk9ine/skrawl-game-sub000/internal/v1/metrics"
)

// RateLimiter guards the websocket upgrade path: one limit per source IP
// and one per authenticated user. In-room rate limits (chat, draw) live in
// the rooms themselves.
type RateLimiter struct {
	wsIP   *limiter.Limiter
	wsUser *limiter.Limiter
	store  limiter.Store
}

// NewRateLimiter parses the configured rates and picks a store: Redis when
// a client is supplied, local memory otherwise.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	wsUserRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsUser)
	if err != nil {
		return nil, fmt.Errorf("invalid WS user rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "Rate limiter using memory store (Redis disabled or unavailable)")
	}

	return &RateLimiter{
		wsIP:   limiter.New(store, wsIPRate),
		wsUser: limiter.New(store, wsUserRate),
		store:  store,
	}, nil
}

// AllowIP checks the per-IP upgrade budget.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (bool, time.Duration) {
	return rl.check(ctx, rl.wsIP, "ws:ip:"+ip, "ip")
}

// AllowUser checks the per-user authentication budget.
func (rl *RateLimiter) AllowUser(ctx context.Context, userID string) (bool, time.Duration) {
	return rl.check(ctx, rl.wsUser, "ws:user:"+userID, "user")
}

func (rl *RateLimiter) check(ctx context.Context, l *limiter.Limiter, key, kind string) (bool, time.Duration) {
	lctx, err := l.Get(ctx, key)
	if err != nil {
		// A broken store must not lock everyone out.
		logging.Warn(ctx, "Rate limiter store error, allowing request")
		return true, 0
	}
	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("connect", kind).Inc()
		retry := time.Until(time.Unix(lctx.Reset, 0))
		if retry < 0 {
			retry = 0
		}
		return false, retry
	}
	return true, 0
}
