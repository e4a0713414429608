// Package cache wraps Redis for short-lived shared state: the France
// Travail bearer token and metadata about the last listings refresh.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ftTokenKey     = "cap:ft:token"
	lastRefreshKey = "cap:listings:last_refresh"
)

// Cache is a thin wrapper over a Redis client. All methods are safe to
// call on a nil *Cache, which degrades to "no cache".
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// Connect opens a Redis connection and verifies it with a bounded ping.
func Connect(ctx context.Context, addr string, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("cache not configured")
	}
	return c.client.Ping(ctx).Err()
}

// GetToken implements jobs.TokenCache.
func (c *Cache) GetToken(ctx context.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	token, err := c.client.Get(ctx, ftTokenKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis token read failed", zap.Error(err))
		}
		return "", false
	}
	return token, token != ""
}

// SetToken implements jobs.TokenCache. The TTL comes from the provider,
// already shortened so the token expires in Redis before it does upstream.
func (c *Cache) SetToken(ctx context.Context, token string, ttl time.Duration) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, ftTokenKey, token, ttl).Err(); err != nil {
		c.logger.Warn("redis token write failed", zap.Error(err))
	}
}

// MarkRefreshed records when the scheduled listings refresh last completed.
func (c *Cache) MarkRefreshed(ctx context.Context, at time.Time) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, lastRefreshKey, at.Format(time.RFC3339), 0).Err(); err != nil {
		c.logger.Warn("redis refresh marker write failed", zap.Error(err))
	}
}

// LastRefreshed returns the time of the last completed refresh, if recorded.
func (c *Cache) LastRefreshed(ctx context.Context) (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	raw, err := c.client.Get(ctx, lastRefreshKey).Result()
	if err != nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
