package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Error("second Migrate() should report no change")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + sync_runs)", result.Version)
	}
	if result.Dirty {
		t.Error("schema is dirty")
	}
}

func TestMigrateFreshDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed() || result.From != 0 {
		t.Errorf("result = %+v, want migration from 0", result)
	}
}

func TestEntryPutGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	if err := db.PutEntry(ctx, Entry{Key: "main:notifications", Value: []byte(`[]`), WrittenAt: at}); err != nil {
		t.Fatal(err)
	}

	e, err := db.GetEntry(ctx, "main:notifications")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("entry not found")
	}
	if string(e.Value) != "[]" {
		t.Errorf("value = %q, want []", e.Value)
	}
	if !e.WrittenAt.Equal(at) {
		t.Errorf("written_at = %v, want %v", e.WrittenAt, at)
	}

	// Overwrite.
	if err := db.PutEntry(ctx, Entry{Key: "main:notifications", Value: []byte(`[1]`), WrittenAt: at.Add(time.Second)}); err != nil {
		t.Fatal(err)
	}
	e, _ = db.GetEntry(ctx, "main:notifications")
	if string(e.Value) != "[1]" {
		t.Errorf("value = %q, want [1] (updated)", e.Value)
	}
}

func TestEntryMissing(t *testing.T) {
	db := testDB(t)
	e, err := db.GetEntry(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Errorf("expected nil for missing entry, got %+v", e)
	}
}

func TestPutEntriesAtomic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.PutEntries(ctx, []Entry{
		{Key: "a", Value: []byte("1"), WrittenAt: now},
		{Key: "b", Value: []byte("2"), WrittenAt: now},
	}); err != nil {
		t.Fatal(err)
	}

	// A cancelled context must leave the previous values untouched.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := db.PutEntries(cancelled, []Entry{
		{Key: "a", Value: []byte("changed"), WrittenAt: now},
		{Key: "b", Value: []byte("changed"), WrittenAt: now},
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		e, err := db.GetEntry(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if e == nil || string(e.Value) != want {
			t.Errorf("%s = %v, want %s", key, e, want)
		}
	}
}

func TestDeleteEntry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.PutEntry(ctx, Entry{Key: "k", Value: []byte("v"), WrittenAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteEntry(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteEntry(ctx, "k"); err != nil {
		t.Errorf("second delete error = %v, want nil", err)
	}
	if e, _ := db.GetEntry(ctx, "k"); e != nil {
		t.Error("entry still present after delete")
	}
}

func TestSyncRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	runs := []*SyncRun{
		{ID: "r1", Profile: "main", Result: "ok", Followers: 10, Following: 12, StartedAt: base, Duration: 40 * time.Millisecond},
		{ID: "r2", Profile: "main", Result: "failed", Reason: "source unreachable", StartedAt: base.Add(time.Minute)},
		{ID: "r3", Profile: "other", Result: "ok", StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := db.InsertRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListRuns(ctx, "main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2", len(got))
	}
	if got[0].ID != "r2" || got[0].Reason != "source unreachable" {
		t.Errorf("newest run = %+v, want r2 with reason", got[0])
	}
	if got[1].Duration != 40*time.Millisecond || got[1].Followers != 10 {
		t.Errorf("oldest run = %+v, want duration 40ms and 10 followers", got[1])
	}
}
