// Package cache provides the analytics result cache: an in-process store, a
// shared Redis store, and a PostgreSQL LISTEN/NOTIFY invalidation feed.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmalytics/internal/domain/analytics"
)

// Store is a result cache backend.
type Store interface {
	analytics.Cache

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Stats returns counters since start.
	Stats() StatsSnapshot

	// Backend names the implementation ("memory" or "redis").
	Backend() string

	Close() error
}

// Compile-time checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// stats tracks cache statistics.
type stats struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	sets        atomic.Uint64
	invalidated atomic.Uint64
	errors      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of store counters.
type StatsSnapshot struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Sets        uint64  `json:"sets"`
	Invalidated uint64  `json:"invalidated"`
	Errors      uint64  `json:"errors"`
	Entries     int     `json:"entries,omitempty"`
	HitRate     float64 `json:"hitRate"`
}

func (s *stats) snapshot() StatsSnapshot {
	hits := s.hits.Load()
	misses := s.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return StatsSnapshot{
		Hits:        hits,
		Misses:      misses,
		Sets:        s.sets.Load(),
		Invalidated: s.invalidated.Load(),
		Errors:      s.errors.Load(),
		HitRate:     hitRate,
	}
}

// Config selects and configures a backend.
type Config struct {
	Backend         string // "memory" or "redis"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Prefix          string
	JanitorInterval time.Duration
}

// Open builds the configured store. A memory store gets its janitor started;
// a redis store is pinged before it is returned.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		m := NewMemoryStore()
		if cfg.JanitorInterval > 0 {
			m.Start(ctx, cfg.JanitorInterval)
		}
		return m, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
