package cache

import (
	"context"
	"time"

	"github.com/matheus3301/followtrack/internal/store"
)

// SQLiteBackend stores entries in the profile database.
type SQLiteBackend struct {
	db *store.DB
}

// NewSQLiteBackend wraps a migrated store.
func NewSQLiteBackend(db *store.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Get reads key from the cache_entries table.
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	e, err := b.db.GetEntry(ctx, key)
	if err != nil || e == nil {
		return nil, time.Time{}, false, err
	}
	return e.Value, e.WrittenAt, true, nil
}

// SetMany upserts items in one transaction.
func (b *SQLiteBackend) SetMany(ctx context.Context, items []Item, at time.Time) error {
	entries := make([]store.Entry, len(items))
	for i, it := range items {
		entries[i] = store.Entry{Key: it.Key, Value: it.Payload, WrittenAt: at}
	}
	return b.db.PutEntries(ctx, entries)
}

// Delete removes key.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	return b.db.DeleteEntry(ctx, key)
}
