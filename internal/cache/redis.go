package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/tavolo/possync/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrCacheMiss is returned when a key has no cached value.
var ErrCacheMiss = errors.New("key not found in cache")

// KV is the minimal durable key-value surface the typed store needs.
type KV interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// RedisCache is the terminal's durable local cache. Each device runs its
// own AOF-backed Redis instance so snapshots survive process restarts.
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// Get retrieves a value from cache.
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache. Snapshots carry no expiration; they are the
// terminal's offline working set.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	err = c.client.Set(ctx, key, data, 0).Err()
	if err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// IsQuotaError reports whether a cache write failed because the store hit
// its memory budget.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "OOM") || strings.Contains(msg, "maxmemory") ||
		strings.Contains(msg, "quota")
}

// OrdersCacheKey generates the orders snapshot key for a tenant.
func OrdersCacheKey(tenantID string) string {
	return fmt.Sprintf("tenant:%s:orders", tenantID)
}

// MenuCacheKey generates the menu snapshot key for a tenant.
func MenuCacheKey(tenantID string) string {
	return fmt.Sprintf("tenant:%s:menu", tenantID)
}

// SettingsCacheKey generates the settings snapshot key for a tenant.
func SettingsCacheKey(tenantID string) string {
	return fmt.Sprintf("tenant:%s:settings", tenantID)
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
