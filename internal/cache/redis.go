// Package cache provides an optional Redis-backed byte cache.
// A cache built without a URL, or whose server is unreachable at startup, is disabled and all operations become no-ops.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix   = "clipshare:"
	pingTimeout = 3 * time.Second
)

// RedisCache is a cache-aside store for derived responses.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to redisURL. Connection problems disable the cache instead of failing startup.
func NewRedisCache(ctx context.Context, redisURL string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redisURL == "" {
		logger.Info("redis: no url configured, caching disabled")
		return &RedisCache{logger: logger}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis: invalid url, caching disabled", zap.Error(err))
		return &RedisCache{logger: logger}
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis: connection failed, caching disabled", zap.Error(err))
		_ = rdb.Close()
		return &RedisCache{logger: logger}
	}

	logger.Info("redis: connected, caching enabled", zap.String("addr", opts.Addr))
	return &RedisCache{rdb: rdb, logger: logger}
}

// Enabled reports whether a Redis server backs the cache.
func (c *RedisCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Load returns the cached value for key. The boolean is false on a miss or when disabled.
func (c *RedisCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Store writes value under key with the given expiry.
func (c *RedisCache) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Set(ctx, keyPrefix+key, value, ttl).Err()
}

// Invalidate removes the given keys.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for index, key := range keys {
		prefixed[index] = keyPrefix + key
	}
	return c.rdb.Del(ctx, prefixed...).Err()
}

// Ping checks the server. A disabled cache is always healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
