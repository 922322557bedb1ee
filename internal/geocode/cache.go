package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/redis/go-redis/v9"
)

// Cache stores resolved coordinates.
type Cache interface {
	Get(ctx context.Context, key string) (geo.Point, bool, error)
	Set(ctx context.Context, key string, p geo.Point) error
}

// RedisCache keeps geocoder results in Redis. Suburb centroids do not move,
// so entries live for a long time.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached point for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (geo.Point, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Point{}, false, nil
	}
	if err != nil {
		return geo.Point{}, false, err
	}
	var p geo.Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return geo.Point{}, false, err
	}
	return p, true, nil
}

// Set stores p under key.
func (c *RedisCache) Set(ctx context.Context, key string, p geo.Point) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func cacheKey(region, suburb string) string {
	return "geocode:" + strings.ToLower(region) + ":" + strings.ToLower(suburb)
}
