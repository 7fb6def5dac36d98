package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/matheus3301/followtrack/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.UnixMilli(1_700_000_000_000)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": NewSQLiteBackend(db),
		"redis":  NewRedisBackend(rdb, time.Hour),
	}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := New(b, "main", nil)

			e := c.Get(ctx, KeyNotifications)
			assert.False(t, e.Exists, "never written")

			require.NoError(t, c.Put(ctx, KeyNotifications, []byte("[]"), at))
			e = c.Get(ctx, KeyNotifications)
			assert.True(t, e.Exists, "written but empty")
			assert.Equal(t, "[]", string(e.Payload))
			assert.True(t, e.WrittenAt.Equal(at))

			require.NoError(t, c.PutMany(ctx, []Item{
				{Key: KeyDashboardMetrics, Payload: []byte(`{"followers":3}`)},
				{Key: KeyHasSynced, Payload: []byte("true")},
			}, at.Add(time.Second)))
			assert.True(t, c.HasSyncedBefore(ctx))

			c.Invalidate(ctx, KeyDashboardMetrics)
			assert.False(t, c.Get(ctx, KeyDashboardMetrics).Exists)

			other := New(b, "other", nil)
			assert.False(t, other.HasSyncedBefore(ctx), "namespaces are isolated")
		})
	}
}

func TestHasSyncedBeforeDefault(t *testing.T) {
	c := New(NewMemoryBackend(), "main", nil)
	assert.False(t, c.HasSyncedBefore(context.Background()))
	_, ok := c.LastUpdated(context.Background())
	assert.False(t, ok)
}

func TestReadFailureIsAbsent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	c := New(b, "main", nil)
	require.NoError(t, c.Put(ctx, KeyHasSynced, []byte("true"), at))

	var ops []string
	c.OnError(func(op string) { ops = append(ops, op) })
	b.FailWith = errors.New("disk gone")

	assert.False(t, c.Get(ctx, KeyHasSynced).Exists)
	assert.False(t, c.HasSyncedBefore(ctx))
	c.Invalidate(ctx, KeyHasSynced)

	err := c.Put(ctx, KeyHasSynced, []byte("false"), at)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []string{"get", "get", "invalidate", "put"}, ops)

	b.FailWith = nil
	assert.True(t, c.HasSyncedBefore(ctx), "failed writes leave the previous entry untouched")
}

func TestCorruptPayloadIsAbsent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	c := New(b, "main", nil)
	b.Corrupt("main:"+KeyLastUpdated, []byte("{not json"))

	var decodeErrors int
	c.OnError(func(op string) {
		if op == "decode" {
			decodeErrors++
		}
	})

	_, ok := c.LastUpdated(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, decodeErrors)
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend(), "main", nil)

	item, err := Encode(KeyLastUpdated, at)
	require.NoError(t, err)
	require.NoError(t, c.PutMany(ctx, []Item{item}, at))

	got, ok := c.LastUpdated(ctx)
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}

func TestPutManyEmptyIsNoop(t *testing.T) {
	b := NewMemoryBackend()
	c := New(b, "main", nil)
	require.NoError(t, c.PutMany(context.Background(), nil, at))
	assert.Equal(t, 0, b.Writes())
}

func TestRedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	c := New(NewRedisBackend(rdb, time.Minute), "main", nil)
	require.NoError(t, c.Put(ctx, KeyUserProfile, []byte(`{}`), at))
	assert.Equal(t, time.Minute, mr.TTL("followtrack:main:"+KeyUserProfile))

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, KeyUserProfile).Exists)
}
