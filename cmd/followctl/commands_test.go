package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matheus3301/followtrack/internal/api"
	"github.com/matheus3301/followtrack/internal/cache"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/profile"
	"github.com/matheus3301/followtrack/internal/relation"
	"github.com/matheus3301/followtrack/internal/source"
	intsync "github.com/matheus3301/followtrack/internal/sync"
	"github.com/spf13/cobra"
)

// startDaemon serves the real API for a mock-backed session on the socket
// followctl resolves for profile "t".
func startDaemon(t *testing.T) *intsync.Session {
	t.Helper()
	home, err := os.MkdirTemp("/tmp", "ft-ctl-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)
	if err := profile.EnsureDir("t"); err != nil {
		t.Fatal(err)
	}

	s := intsync.NewSession(intsync.Deps{
		Source: source.NewMock(source.MockOptions{Seed: 2, Followers: 8, Following: 6, Overlap: 0.5}),
		Cache:  cache.New(cache.NewMemoryBackend(), "t", nil),
	}, intsync.Options{
		Profile:    "t",
		Limits:     feed.Limits{NewFollowers: 10, Unfollows: 10},
		UndoWindow: time.Minute,
	})

	ln, err := net.Listen("unix", profile.SocketPath("t"))
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: api.NewHandler(api.Deps{Profile: "t", Session: s})}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return s
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	noColor = true
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--profile", "t"}, args...))
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores defaults; cobra keeps flag values between Execute
// calls on the same command tree.
func resetFlags() {
	profileFlag, jsonOut, timeout = "", false, 30*time.Second
	local := map[*cobra.Command][]string{
		syncCmd:          {"no-wait"},
		usersCmd:         {"newest"},
		notificationsCmd: {"unread"},
		undoCmd:          {"dismiss"},
		readCmd:          {"all"},
		runsCmd:          {"limit"},
	}
	for cmd, names := range local {
		for _, name := range names {
			f := cmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
}

func TestStatusBeforeSync(t *testing.T) {
	startDaemon(t)
	out, err := run(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "IDLE") || !strings.Contains(out, "never synced") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSyncThenStatusJSON(t *testing.T) {
	startDaemon(t)
	if _, err := run(t, "sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}

	out, err := run(t, "--json", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	var got struct {
		Status    string `json:"status"`
		HasSynced bool   `json:"has_synced"`
		Dashboard struct {
			Counts relation.Counts `json:"counts"`
		} `json:"dashboard"`
	}
	if err := sonic.UnmarshalString(out, &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Status != "READY" || !got.HasSynced {
		t.Errorf("status = %s synced = %v, want READY true", got.Status, got.HasSynced)
	}
	if got.Dashboard.Counts.Followers != 8 || got.Dashboard.Counts.Mutuals != 3 {
		t.Errorf("counts = %+v, want 8 followers / 3 mutuals", got.Dashboard.Counts)
	}
}

func TestUsersList(t *testing.T) {
	s := startDaemon(t)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--json", "users", "mutuals")
	if err != nil {
		t.Fatalf("users error = %v", err)
	}
	var users []relation.UserRecord
	if err := sonic.UnmarshalString(out, &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Errorf("mutuals = %d, want 3", len(users))
	}

	if _, err := run(t, "users", "strangers"); err == nil {
		t.Error("unknown set should fail")
	}
}

func TestUnfollowAndUndo(t *testing.T) {
	s := startDaemon(t)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	target := s.View().Following[0].ID

	out, err := run(t, "--json", "unfollow", target)
	if err != nil {
		t.Fatalf("unfollow error = %v", err)
	}
	var tok api.TokenResponse
	if err := sonic.UnmarshalString(out, &tok); err != nil {
		t.Fatal(err)
	}
	if !tok.OK || tok.Token == "" {
		t.Fatalf("unfollow = %+v, want ok with a token", tok)
	}
	if n := len(s.View().Following); n != 5 {
		t.Errorf("following after unfollow = %d, want 5", n)
	}

	if _, err := run(t, "undo", string(tok.Token)); err != nil {
		t.Fatalf("undo error = %v", err)
	}
	if n := len(s.View().Following); n != 6 {
		t.Errorf("following after undo = %d, want 6", n)
	}
	if _, err := run(t, "undo", string(tok.Token)); err == nil {
		t.Error("second undo should fail")
	}
}

func TestUnfollowUnknownAccount(t *testing.T) {
	s := startDaemon(t)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "unfollow", "nobody"); err != nil {
		t.Fatalf("unfollow of an unknown account error = %v", err)
	}
	out, err := run(t, "--json", "delete", "999")
	if err != nil {
		t.Fatalf("delete of an unknown notification error = %v", err)
	}
	var tok api.TokenResponse
	if err := sonic.UnmarshalString(out, &tok); err != nil {
		t.Fatal(err)
	}
	if tok.OK || tok.Token != "" {
		t.Errorf("delete = %+v, want ok false without a token", tok)
	}
	if n := len(s.View().Following); n != 6 {
		t.Errorf("following = %d, want 6", n)
	}
}

func TestNotificationsReadAll(t *testing.T) {
	s := startDaemon(t)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "notifications", "--unread")
	if err != nil {
		t.Fatalf("notifications error = %v", err)
	}
	if !strings.Contains(out, "started following you") {
		t.Errorf("expected new follower notifications:\n%s", out)
	}

	if _, err := run(t, "read", "--all"); err != nil {
		t.Fatalf("read --all error = %v", err)
	}
	out, err = run(t, "notifications", "--unread")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No notifications.") {
		t.Errorf("unread after read --all:\n%s", out)
	}
}

func TestReadArgs(t *testing.T) {
	startDaemon(t)
	if _, err := run(t, "read"); err == nil {
		t.Error("read without id or --all should fail")
	}
	if _, err := run(t, "read", "--all", "3"); err == nil {
		t.Error("read with both id and --all should fail")
	}
	if _, err := run(t, "delete", "abc"); err == nil {
		t.Error("delete with a non-numeric id should fail")
	}
}

func TestDaemonNotRunning(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())
	_, err := run(t, "status")
	if err == nil {
		t.Fatal("status without a daemon should fail")
	}
	if !strings.Contains(err.Error(), `profile "t"`) {
		t.Errorf("error = %v, want profile name", err)
	}
}

func TestInvalidProfile(t *testing.T) {
	noColor = true
	resetFlags()
	rootCmd.SetArgs([]string{"--profile", "Bad Name", "status"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err == nil {
		t.Error("invalid profile should fail")
	}
}
