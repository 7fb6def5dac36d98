package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Sync.UndoWindow = Duration{30 * time.Second}
	cfg.Cache.Backend = BackendRedis
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Sync.UndoWindow.Duration != 30*time.Second {
		t.Errorf("UndoWindow = %v, want 30s", loaded.Sync.UndoWindow)
	}
	if loaded.Cache.Backend != BackendRedis {
		t.Errorf("Cache.Backend = %q, want redis", loaded.Cache.Backend)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[sync]\nmax_new_followers = 3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sync.MaxNewFollowers != 3 {
		t.Errorf("MaxNewFollowers = %d, want 3", cfg.Sync.MaxNewFollowers)
	}
	if cfg.Sync.MaxUnfollowEvents != 10 {
		t.Errorf("MaxUnfollowEvents = %d, want default 10", cfg.Sync.MaxUnfollowEvents)
	}
	if cfg.Cache.Backend != BackendSQLite {
		t.Errorf("Cache.Backend = %q, want default sqlite", cfg.Cache.Backend)
	}
	if cfg.Sync.MaxNotifications != 200 {
		t.Errorf("MaxNotifications = %d, want default 200", cfg.Sync.MaxNotifications)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"backend", "[cache]\nbackend = \"etcd\"\n"},
		{"negative limit", "[sync]\nmax_unfollow_events = -1\n"},
		{"churn", "[source]\nchurn = 1.5\n"},
		{"duration", "[sync]\nundo_window = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultProfile != "main" {
		t.Errorf("DefaultProfile = %q, want main", cfg.DefaultProfile)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
