package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertEntry = `
	INSERT INTO cache_entries (key, value, written_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, written_at = excluded.written_at`

// GetEntry returns the entry stored under key, or nil if absent.
func (db *DB) GetEntry(ctx context.Context, key string) (*Entry, error) {
	var (
		e  Entry
		ms int64
	)
	err := db.QueryRowContext(ctx, `SELECT key, value, written_at FROM cache_entries WHERE key = ?`, key).
		Scan(&e.Key, &e.Value, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.WrittenAt = time.UnixMilli(ms)
	return &e, nil
}

// PutEntry inserts or replaces a single entry.
func (db *DB) PutEntry(ctx context.Context, e Entry) error {
	_, err := db.ExecContext(ctx, upsertEntry, e.Key, e.Value, e.WrittenAt.UnixMilli())
	return err
}

// PutEntries writes all entries in one transaction. Either every entry is
// stored or none is.
func (db *DB) PutEntries(ctx context.Context, entries []Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsertEntry, e.Key, e.Value, e.WrittenAt.UnixMilli()); err != nil {
			return fmt.Errorf("put %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// DeleteEntry removes key. Deleting a missing key is not an error.
func (db *DB) DeleteEntry(ctx context.Context, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}
