package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/taskd/internal/cache"
)

// scanCount is the COUNT hint passed to SCAN by DeleteByPrefix.
const scanCount = 100

// Cache implements cache.Cache on Redis strings.
type Cache struct {
	rdb redis.UniversalClient
}

var _ cache.Cache = (*Cache)(nil)

// NewCache creates a cache on rdb.
func NewCache(rdb redis.UniversalClient) *Cache {
	if rdb == nil {
		// ALLOW-PANIC
		panic("redis client cannot be nil")
	}
	return &Cache{rdb: rdb}
}

// Get implements cache.Cache. redis.Nil is a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &cache.Error{Op: "get", Key: key, Err: err}
	}
	return b, true, nil
}

// Set implements cache.Cache with SET EX.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return &cache.Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete implements cache.Cache.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return &cache.Error{Op: "delete", Key: strings.Join(keys, ","), Err: err}
	}
	return nil
}

// DeleteByPrefix implements cache.Cache by walking SCAN MATCH prefix* and
// deleting each page of keys. Keys written during the walk may survive.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	pattern := escapeGlob(prefix) + "*"

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return &cache.Error{Op: "scan", Key: pattern, Err: err}
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return &cache.Error{Op: "delete", Key: pattern, Err: err}
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
