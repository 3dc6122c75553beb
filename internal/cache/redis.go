package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "finbridge:cache:"

// RedisCache shares cached responses across mediator instances. Expiry is
// delegated to redis key TTLs, so PurgeExpired has nothing to sweep.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache wraps an existing redis client. Errors talking to redis are
// logged and degrade to cache misses rather than failing the pipeline.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (map[string]any, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis cache read failed", "error", err)
		}
		return nil, false
	}

	var response map[string]any
	if err := json.Unmarshal(raw, &response); err != nil {
		c.logger.Warn("redis cache entry is not valid json", "error", err)
		return nil, false
	}
	return response, true
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, response map[string]any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(response)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+fingerprint, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis cache write failed", "error", err)
	}
}

func (c *RedisCache) PurgeExpired(context.Context) int {
	// redis expires keys natively.
	return 0
}

func (c *RedisCache) Clear(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			c.logger.Warn("redis cache scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("redis cache delete failed", "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
