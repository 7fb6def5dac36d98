// Package cache is the namespaced local cache the reconciliation layer reads
// before touching the network and writes through after every fetch.
//
// Read and write failures are never returned to readers: a failed or
// corrupt read is reported as absent and logged.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Logical keys.
const (
	KeyDashboardMetrics = "dashboard_metrics"
	KeyNotifications    = "notifications"
	KeyUserProfile      = "user_profile"
	KeyRelationships    = "relationships"
	KeyHasSynced        = "has_synced_data"
	KeyLastUpdated      = "last_updated"
)

// ErrUnavailable wraps backend failures on write.
var ErrUnavailable = errors.New("cache unavailable")

// Entry is a cached payload. Exists distinguishes "never written" from
// "written but empty".
type Entry struct {
	Key       string
	Payload   []byte
	WrittenAt time.Time
	Exists    bool
}

// Item is one payload of a batch write.
type Item struct {
	Key     string
	Payload []byte
}

// Backend is a generic key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (payload []byte, writtenAt time.Time, ok bool, err error)
	// SetMany writes all items atomically.
	SetMany(ctx context.Context, items []Item, at time.Time) error
	Delete(ctx context.Context, key string) error
}

// Cache wraps a Backend under a namespace. Operations on one namespace are
// serialized.
type Cache struct {
	mu        sync.Mutex
	backend   Backend
	namespace string
	logger    *zap.Logger
	onError   func(op string)
}

// New creates a cache. A nil logger discards logs.
func New(backend Backend, namespace string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		backend:   backend,
		namespace: namespace,
		logger:    logger.With(zap.String("namespace", namespace)),
		onError:   func(string) {},
	}
}

// OnError registers a hook called with the operation name on every backend
// failure.
func (c *Cache) OnError(fn func(op string)) {
	c.onError = fn
}

// Namespace returns the cache namespace.
func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) key(k string) string {
	return c.namespace + ":" + k
}

// Get returns the entry under key; on any failure the entry reads as absent.
func (c *Cache) Get(ctx context.Context, key string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, at, ok, err := c.backend.Get(ctx, c.key(key))
	if err != nil {
		c.fail("get", key, err)
		return Entry{Key: key}
	}
	if !ok {
		return Entry{Key: key}
	}
	return Entry{Key: key, Payload: payload, WrittenAt: at, Exists: true}
}

// Put writes a single payload.
func (c *Cache) Put(ctx context.Context, key string, payload []byte, at time.Time) error {
	return c.PutMany(ctx, []Item{{Key: key, Payload: payload}}, at)
}

// PutMany writes all items in one atomic backend call. On failure nothing
// is changed and the returned error wraps ErrUnavailable.
func (c *Cache) PutMany(ctx context.Context, items []Item, at time.Time) error {
	if len(items) == 0 {
		return nil
	}
	namespaced := make([]Item, len(items))
	for i, it := range items {
		namespaced[i] = Item{Key: c.key(it.Key), Payload: it.Payload}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.SetMany(ctx, namespaced, at); err != nil {
		c.fail("put", items[0].Key, err)
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// Invalidate removes key. Failures are logged only.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.Delete(ctx, c.key(key)); err != nil {
		c.fail("invalidate", key, err)
	}
}

// HasSyncedBefore reports whether a full sync has been written.
func (c *Cache) HasSyncedBefore(ctx context.Context) bool {
	var synced bool
	return Load(ctx, c, KeyHasSynced, &synced) && synced
}

// LastUpdated returns the time of the last successful write-through.
func (c *Cache) LastUpdated(ctx context.Context) (time.Time, bool) {
	var ts time.Time
	ok := Load(ctx, c, KeyLastUpdated, &ts)
	return ts, ok
}

// Load decodes the payload under key into v. A missing, unreadable or
// corrupt entry returns false.
func Load(ctx context.Context, c *Cache, key string, v any) bool {
	e := c.Get(ctx, key)
	if !e.Exists {
		return false
	}
	if err := sonic.Unmarshal(e.Payload, v); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.onError("decode")
		return false
	}
	return true
}

// Encode builds a batch item from v.
func Encode(key string, v any) (Item, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: key, Payload: b}, nil
}

func (c *Cache) fail(op, key string, err error) {
	c.logger.Warn("cache operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	c.onError(op)
}
