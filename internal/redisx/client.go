// Package redisx wraps two Redis-backed concerns: a general cache
// client (the Market Data Aggregator keeps its quote cache in process
// memory and does not use it), and a Redlock manager for the Trade
// Router's per-user submission lock (§4.6.3a), which must serialize
// across horizontally-scaled instances, not just within one process.
package redisx

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/logger"
)

// Client bundles a standard go-redis client for caching with a RedLock
// manager for distributed mutual exclusion.
type Client struct {
	cache *redis.Client
	locks *redlock.RedLock
}

// New connects both the cache client and the RedLock manager against
// the same Redis instance.
func New(cfg config.RedisConfig) (*Client, error) {
	cache := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	locks, err := redlock.NewRedLock(ctx, []string{"tcp://" + cfg.Addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis client initialized", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{cache: cache, locks: locks}, nil
}

// Cache exposes the raw go-redis client for direct cache operations.
func (c *Client) Cache() *redis.Client { return c.cache }

// Locks exposes the RedLock manager for internal/router's submission lock.
func (c *Client) Locks() *redlock.RedLock { return c.locks }

// Lock acquires name for ttl and returns a release function, wrapping
// the RedLock acquire/release pair the Trade Router needs for its
// per-owner submission lock (§4.6.3a). Defined here rather than at the
// call site so internal/router can depend on the narrow LockManager
// interface instead of *redlock.RedLock directly.
func (c *Client) Lock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	if _, err := c.locks.Lock(ctx, name, ttl); err != nil {
		return nil, err
	}
	return func() {
		if err := c.locks.UnLock(ctx, name); err != nil {
			logger.Warn("failed to release lock", zap.String("name", name), zap.Error(err))
		}
	}, nil
}

// Health verifies the cache connection is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.cache.Ping(ctx).Err()
}

// Close releases the cache connection pool. RedLock has no persistent
// connection of its own to close.
func (c *Client) Close() error {
	return c.cache.Close()
}
