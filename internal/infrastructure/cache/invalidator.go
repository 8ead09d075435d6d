package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmalytics/internal/domain/analytics"
	"pharmalytics/pkg/logger"
)

// StockChangedChannel is the NOTIFY channel write paths (sales, purchases,
// adjustments) signal on. The payload is a cache key prefix within the
// analytics namespace; an empty payload invalidates the whole namespace.
const StockChangedChannel = "stock_changed"

// Invalidatable is the part of a store the invalidator needs.
type Invalidatable interface {
	Invalidate(ctx context.Context, prefix string) (int, error)
}

// InvalidationListener is called after each handled notification.
type InvalidationListener func(prefix string, removed int)

// Invalidator drops analytics cache entries when PostgreSQL reports a stock
// change via LISTEN/NOTIFY.
type Invalidator struct {
	pool  *pgxpool.Pool
	store Invalidatable

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewInvalidator creates an invalidator for store.
func NewInvalidator(pool *pgxpool.Pool, store Invalidatable) *Invalidator {
	return &Invalidator{pool: pool, store: store}
}

// AddListener registers fn to be called after every invalidation.
func (v *Invalidator) AddListener(fn InvalidationListener) {
	v.listenersMu.Lock()
	defer v.listenersMu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// Start begins listening in the background.
func (v *Invalidator) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if v.pool == nil {
		return errors.New("invalidator: nil pool")
	}

	v.lifecycleMu.Lock()
	defer v.lifecycleMu.Unlock()
	if v.started {
		return nil
	}
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.started = true

	v.wg.Add(1)
	go v.listenLoop()
	logger.Info(v.ctx, "cache invalidator started", "channel", StockChangedChannel)
	return nil
}

// Stop halts the listener and waits for it to exit.
func (v *Invalidator) Stop() {
	v.lifecycleMu.Lock()
	if !v.started {
		v.lifecycleMu.Unlock()
		return
	}
	cancel := v.cancel
	v.started = false
	v.cancel = nil
	v.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.wg.Wait()
	logger.Info(context.Background(), "cache invalidator stopped")
}

// listenLoop holds a dedicated connection in LISTEN, reconnecting on failure.
func (v *Invalidator) listenLoop() {
	defer v.wg.Done()

	reconnect := false
	for {
		if v.ctx.Err() != nil {
			return
		}

		conn, err := v.pool.Acquire(v.ctx)
		if err != nil {
			logger.Error(v.ctx, "failed to acquire connection for LISTEN", "error", err)
			v.pause(time.Second)
			continue
		}

		if _, err = conn.Exec(v.ctx, "LISTEN "+StockChangedChannel); err != nil {
			logger.Error(v.ctx, "failed to LISTEN", "channel", StockChangedChannel, "error", err)
			conn.Release()
			v.pause(time.Second)
			continue
		}

		logger.Info(v.ctx, "listening for notifications", "channel", StockChangedChannel)

		// Changes made while the listener was down were missed.
		if reconnect {
			v.handle(v.ctx, "")
		}
		reconnect = true

		v.waitForNotifications(conn)
		// The connection may still hold the LISTEN; do not return it to the pool.
		_ = conn.Hijack().Close(context.Background())
	}
}

// waitForNotifications blocks until the connection breaks or v is stopped.
func (v *Invalidator) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(v.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if v.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Warn(v.ctx, "notification wait failed, reconnecting", "error", err)
			return
		}

		logger.Debug(v.ctx, "received notification", "channel", n.Channel, "payload", n.Payload)
		v.handle(v.ctx, n.Payload)
	}
}

// handle invalidates the prefix named by payload and notifies listeners.
func (v *Invalidator) handle(ctx context.Context, payload string) {
	prefix := PrefixFromPayload(payload)
	removed, err := v.store.Invalidate(ctx, prefix)
	if err != nil {
		logger.Error(ctx, "cache invalidation failed", "prefix", prefix, "error", err)
		return
	}
	logger.Info(ctx, "analytics cache invalidated", "prefix", prefix, "removed", removed)

	v.listenersMu.RLock()
	defer v.listenersMu.RUnlock()
	for _, l := range v.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(ctx, "invalidation listener panic recovered", "panic", fmt.Sprint(r))
				}
			}()
			l(prefix, removed)
		}()
	}
}

// pause sleeps for d unless v is stopped first.
func (v *Invalidator) pause(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-v.ctx.Done():
	case <-t.C:
	}
}

// PrefixFromPayload maps a NOTIFY payload to a key prefix confined to the
// analytics namespace.
func PrefixFromPayload(payload string) string {
	p := strings.TrimSpace(payload)
	if strings.HasPrefix(p, analytics.CacheKeyPrefix) {
		return p
	}
	return analytics.CacheKeyPrefix + p
}
