// Package cache opens the shared Redis connection used by the identity cache
// and the distributed rate limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// Needed reports whether any configured component uses Redis.
func Needed(cfg *config.Config) bool {
	cacheNeeds := cfg.Auth.Cache.Enabled && cfg.Auth.Cache.Backend == "redis"
	limiterNeeds := cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.Backend == "redis"
	return cacheNeeds || limiterNeeds
}
