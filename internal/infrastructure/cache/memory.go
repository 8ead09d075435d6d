package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"pharmalytics/pkg/logger"
)

// BackendMemory names the in-process store.
const BackendMemory = "memory"

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local TTL cache. Expired entries are dropped when
// looked up, and in bulk by the optional janitor.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	stats   stats

	// Janitor lifecycle
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend implements Store.
func (m *MemoryStore) Backend() string { return BackendMemory }

// Get returns the value for key. A missing and an expired entry are both a
// miss.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := m.now()

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.stats.misses.Add(1)
		return nil, false, nil
	}
	if e.expired(now) {
		m.mu.Lock()
		// Re-check: a concurrent Set may have replaced it.
		if cur, ok := m.entries[key]; ok && cur.expired(now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		m.stats.misses.Add(1)
		return nil, false, nil
	}

	m.stats.hits.Add(1)
	return e.value, true, nil
}

// Set stores value under key, replacing any previous entry. A non-positive
// ttl stores without expiry.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()

	m.stats.sets.Add(1)
	return nil
}

// Invalidate removes every key with the given prefix.
func (m *MemoryStore) Invalidate(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	m.mu.Unlock()

	m.stats.invalidated.Add(uint64(removed))
	return removed, nil
}

// Sweep drops all expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Stats implements Store.
func (m *MemoryStore) Stats() StatsSnapshot {
	s := m.stats.snapshot()
	s.Entries = m.Len()
	return s
}

// Start runs Sweep every interval until Stop is called or ctx is done.
// Calling Start on a running store is a no-op.
func (m *MemoryStore) Start(ctx context.Context, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.started || interval <= 0 {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.started = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logger.Debug(ctx, "cache janitor swept expired entries", "removed", n)
				}
			}
		}
	}()
	logger.Info(ctx, "cache janitor started", "interval", interval.String())
}

// Stop halts the janitor and waits for it to exit.
func (m *MemoryStore) Stop() {
	m.lifecycleMu.Lock()
	if !m.started {
		m.lifecycleMu.Unlock()
		return
	}
	cancel := m.cancel
	m.started = false
	m.cancel = nil
	m.lifecycleMu.Unlock()

	cancel()
	m.wg.Wait()
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.Stop()
	return nil
}
