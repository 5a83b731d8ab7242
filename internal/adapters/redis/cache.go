package redisad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"umrah_prices/internal/adapters/observability"
)

// keyPrefix namespaces every entry so one redis can be shared between
// environments without crawl caches colliding.
const keyPrefix = "up:"

// Cache backs the cache manager. Entries are disposable: a miss or a
// redis outage only costs a rate-limited refetch, never correctness.
type Cache struct {
	c *redis.Client
}

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    pass,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 500 * time.Millisecond,
	})}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.c.Get(ctx, keyPrefix+key).Bytes()
	switch {
	case err == redis.Nil:
		observability.ObserveCache("redis", "miss")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// stale schema in the cache is treated as a miss
		observability.ObserveCache("redis", "decode_error")
		return false, nil
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	observability.ObserveCache("redis", "set")
	return c.c.Set(ctx, keyPrefix+key, raw, time.Duration(ttlSec)*time.Second).Err()
}

func (c *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return c.c.Del(ctx, keyPrefix+key).Err()
}

func (c *Cache) Close() error { return c.c.Close() }
