// Package cache is the cache-aside layer in front of the read endpoints.
// Lookups happen in the service layer before the repository is asked;
// mutations invalidate the affected keys centrally from the same services.
// A cache failure never fails the request, and a conservative TTL backstops
// any missed invalidation path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 10 * time.Minute

type Cache interface {
	// GetJSON unmarshals the cached payload into dst, reporting whether the
	// key was present. Misses and transport errors both report false; the
	// error is only for the caller's logging.
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses a redis URL and verifies the connection.
func Connect(url string, timeout time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis within %v: %w", timeout, err)
	}
	return client, nil
}

func New(client *redis.Client, ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return false, err
	}
	return true, nil
}

func (c *redisCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value: %w", err)
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
