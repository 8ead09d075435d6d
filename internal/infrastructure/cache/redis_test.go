package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires Redis on localhost:6379; skipped otherwise.
const testRedisAddr = "localhost:6379"

func setupRedisStore(t *testing.T, prefix string) *RedisStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	store := NewRedisStore(client, prefix)
	_, _ = store.Invalidate(ctx, "")
	t.Cleanup(func() {
		_, _ = store.Invalidate(context.Background(), "")
		_ = store.Close()
	})
	return store
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := setupRedisStore(t, "pharmalytics-test-getset:")

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"x":1}`), time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"x":1}`, string(v))

	ttl, err := s.client.TTL(ctx, "pharmalytics-test-getset:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := setupRedisStore(t, "pharmalytics-test-expiry:")

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, ok, err := s.Get(ctx, "k")
		return err == nil && !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisStore_InvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	s := setupRedisStore(t, "pharmalytics-test-inv:")

	keys := []string{
		"stock-analytics:page-1:limit-25:q-:mode-full",
		"stock-analytics:page-2:limit-25:q-:mode-full",
		"stock-analytics:page-1:limit-25:q-a*b:mode-full",
		"stock-analytics:insights:critical",
	}
	for _, k := range keys {
		require.NoError(t, s.Set(ctx, k, []byte("v"), time.Minute))
	}

	// Glob characters in the prefix match literally.
	n, err := s.Invalidate(ctx, "stock-analytics:page-1:limit-25:q-a*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Invalidate(ctx, "stock-analytics:page-")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := s.Get(ctx, "stock-analytics:insights:critical")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `q-a\*b\?\[x\]`, escapeGlob("q-a*b?[x]"))
	assert.Equal(t, `plain:key`, escapeGlob("plain:key"))
}
