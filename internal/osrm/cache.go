package osrm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheTTL = 24 * time.Hour

// RedisCache implements RouteCache over Redis. Routes for a given
// endpoint pair are stable for a day, so entries carry a 24h TTL.
// Redis being down never fails routing; every error degrades to a
// cache miss.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects a cache to redisURL. Returns nil (no caching)
// when the URL is empty or unparseable.
func NewRedisCache(redisURL string) *RedisCache {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		zap.L().Warn("osrm cache: bad redis url, caching disabled", zap.Error(err))
		return nil
	}
	return &RedisCache{client: redis.NewClient(opts)}
}

// Get implements RouteCache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Route, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Debug("osrm cache: get failed", zap.Error(err))
		}
		return nil, false
	}
	var route Route
	if err := json.Unmarshal(data, &route); err != nil {
		zap.L().Debug("osrm cache: bad entry", zap.String("key", key))
		return nil, false
	}
	return &route, true
}

// Set implements RouteCache.
func (c *RedisCache) Set(ctx context.Context, key string, route *Route) {
	if c == nil {
		return
	}
	data, err := json.Marshal(route)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		zap.L().Debug("osrm cache: set failed", zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
