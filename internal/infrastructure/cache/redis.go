package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// BackendRedis names the shared Redis store.
const BackendRedis = "redis"

// scanBatch is the COUNT hint for SCAN during prefix invalidation.
const scanBatch = 100

// RedisStore keeps entries in Redis so they are shared between the API
// processes and the cache warmer. Keys are namespaced by prefix; expiry is
// delegated to Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	stats  stats
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Backend implements Store.
func (r *RedisStore) Backend() string { return BackendRedis }

// Get implements analytics.Cache.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.stats.misses.Add(1)
			return nil, false, nil
		}
		r.stats.errors.Add(1)
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	r.stats.hits.Add(1)
	return data, true, nil
}

// Set implements analytics.Cache. A non-positive ttl stores without expiry.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	r.stats.sets.Add(1)
	return nil
}

// Invalidate deletes every key starting with prefix using SCAN, so it never
// blocks Redis the way KEYS would.
func (r *RedisStore) Invalidate(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(r.prefix+prefix) + "*"

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			r.stats.errors.Add(1)
			return removed, fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				r.stats.errors.Add(1)
				return removed, fmt.Errorf("cache delete: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	r.stats.invalidated.Add(uint64(removed))
	return removed, nil
}

// Ping implements Store.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Stats implements Store.
func (r *RedisStore) Stats() StatsSnapshot {
	return r.stats.snapshot()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob makes s match literally in a Redis MATCH pattern.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
