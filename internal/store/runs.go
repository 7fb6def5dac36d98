package store

import (
	"context"
	"time"
)

// InsertRun records a sync attempt.
func (db *DB) InsertRun(ctx context.Context, r *SyncRun) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, profile, result, reason, followers, following, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Profile, r.Result, r.Reason, r.Followers, r.Following, r.StartedAt.UnixMilli(), r.Duration.Milliseconds())
	return err
}

// ListRuns returns the most recent sync attempts for a profile, newest first.
func (db *DB) ListRuns(ctx context.Context, profile string, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, profile, result, reason, followers, following, started_at, duration_ms
		FROM sync_runs
		WHERE profile = ?
		ORDER BY started_at DESC
		LIMIT ?`, profile, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []SyncRun
	for rows.Next() {
		var (
			r          SyncRun
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &r.Profile, &r.Result, &r.Reason, &r.Followers, &r.Following, &startedAt, &durationMs); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
