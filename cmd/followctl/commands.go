package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/followtrack/internal/api"
	"github.com/matheus3301/followtrack/internal/daemon"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/ledger"
	"github.com/matheus3301/followtrack/internal/profile"
	"github.com/matheus3301/followtrack/internal/relation"
	intsync "github.com/matheus3301/followtrack/internal/sync"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show profile status and dashboard counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			v, err := c.View(ctx, false)
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), struct {
					Status    string            `json:"status"`
					HasSynced bool              `json:"has_synced"`
					Syncing   bool              `json:"syncing"`
					LastError string            `json:"last_error,omitempty"`
					Dashboard intsync.Dashboard `json:"dashboard"`
				}{string(v.Status), v.HasSynced, v.Syncing, v.LastError, v.Dashboard})
			}
			out := cmd.OutOrStdout()
			printField(out, "Status", "%s", v.Status)
			if !v.HasSynced {
				printField(out, "Data", "never synced")
				return nil
			}
			counts := v.Dashboard.Counts
			printField(out, "Updated", "%s", v.LastUpdated.Local().Format("2006-01-02 15:04:05"))
			printField(out, "Followers", "%d", counts.Followers)
			printField(out, "Following", "%d", counts.Following)
			printField(out, "Mutuals", "%d", counts.Mutuals)
			printField(out, "Not following back", "%d", counts.NotFollowingBack)
			printField(out, "Follow-back ratio", "%.0f%%", counts.FollowBackRatio*100)
			printField(out, "Unread", "%d", v.Dashboard.Unread)
			if v.LastError != "" {
				printField(out, "Last error", "%s", v.LastError)
			}
			return nil
		})
	},
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the daemon's gRPC health socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveProfile()
		if err != nil {
			return err
		}
		conn, err := grpc.NewClient("unix://"+profile.HealthSocketPath(name), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial health socket: %w", err)
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		resp, err := healthgrpc.NewHealthClient(conn).Check(ctx, &healthgrpc.HealthCheckRequest{Service: daemon.ServiceName})
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"status": resp.Status.String()})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Status.String())
		return err
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch relationships now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noWait, _ := cmd.Flags().GetBool("no-wait")
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if noWait {
				queued, err := c.TriggerSync(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(cmd.OutOrStdout(), api.QueuedResponse{Queued: queued})
				}
				if queued {
					printSuccess("sync queued")
				} else {
					printWarning("a sync is already queued")
				}
				return nil
			}
			res, err := c.Sync(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			printSuccess("synced %d followers, %d following, %d new notifications in %s",
				res.Counts.Followers, res.Counts.Following, res.NewNotifications, res.Duration)
			if !res.Persisted {
				printWarning("cache write failed; results are kept in memory only")
			}
			return nil
		})
	},
}

// --- users ---

var listSets = map[string]func(v intsync.View) []relation.UserRecord{
	"followers":          func(v intsync.View) []relation.UserRecord { return v.Followers },
	"following":          func(v intsync.View) []relation.UserRecord { return v.Following },
	"mutuals":            func(v intsync.View) []relation.UserRecord { return v.Mutuals },
	"not-following-back": func(v intsync.View) []relation.UserRecord { return v.NotFollowingBack },
	"not-followed-back":  func(v intsync.View) []relation.UserRecord { return v.NotFollowedBack },
}

var usersCmd = &cobra.Command{
	Use:   "users <followers|following|mutuals|not-following-back|not-followed-back>",
	Short: "List one relationship set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pick, ok := listSets[args[0]]
		if !ok {
			return fmt.Errorf("unknown set %q", args[0])
		}
		newest, _ := cmd.Flags().GetBool("newest")
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			v, err := c.View(ctx, newest)
			if err != nil {
				return err
			}
			users := pick(v)
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), users)
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				_, err := fmt.Fprintln(out, "No accounts.")
				return err
			}
			for _, u := range users {
				fmt.Fprintf(out, "%-10s @%-20s %-24s %s\n", u.ID, u.Username, u.DisplayName, u.FollowedAt.Local().Format("2006-01-02"))
			}
			return nil
		})
	},
}

// --- notifications ---

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"feed"},
	Short:   "List notifications, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		unreadOnly, _ := cmd.Flags().GetBool("unread")
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			v, err := c.View(ctx, false)
			if err != nil {
				return err
			}
			records := v.Notifications
			if unreadOnly {
				records = unread(records)
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				_, err := fmt.Fprintln(out, "No notifications.")
				return err
			}
			for _, r := range records {
				mark := " "
				if !r.Read {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %5d  %-17s %s\n", mark, r.ID, r.Type, r.Message)
			}
			return nil
		})
	},
}

func unread(records []feed.Record) []feed.Record {
	out := []feed.Record{}
	for _, r := range records {
		if !r.Read {
			out = append(out, r)
		}
	}
	return out
}

// --- mutations ---

var unfollowCmd = &cobra.Command{
	Use:   "unfollow <account-id>",
	Short: "Remove an account from the following list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			tok, ok, err := c.Unfollow(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok && !jsonOut {
				printWarning("%s is not in the following list", args[0])
				return nil
			}
			return printToken(cmd, tok, ok, "unfollowed %s", args[0])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <notification-id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notification id %q", args[0])
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			tok, ok, err := c.DeleteNotification(ctx, id)
			if err != nil {
				return err
			}
			if !ok && !jsonOut {
				printWarning("notification %d does not exist", id)
				return nil
			}
			return printToken(cmd, tok, ok, "deleted notification %d", id)
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <token>",
	Short: "Reverse a recent unfollow or delete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dismiss, _ := cmd.Flags().GetBool("dismiss")
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			tok := ledger.Token(args[0])
			var (
				ok  bool
				err error
			)
			if dismiss {
				ok, err = c.Dismiss(ctx, tok)
			} else {
				ok, err = c.Undo(ctx, tok)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), api.OKResponse{OK: ok})
			}
			if !ok {
				return fmt.Errorf("token %s is unknown, expired or already used", tok)
			}
			if dismiss {
				printSuccess("dismissed")
			} else {
				printSuccess("undone")
			}
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read [notification-id]",
	Short: "Mark a notification, or with --all every notification, as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("pass a notification id or --all")
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if all {
				n, err := c.MarkAllRead(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(cmd.OutOrStdout(), api.CountResponse{Count: n})
				}
				printSuccess("marked %d notifications read", n)
				return nil
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			ok, err := c.MarkRead(ctx, id)
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), api.OKResponse{OK: ok})
			}
			if !ok {
				printWarning("notification %d was already read or does not exist", id)
				return nil
			}
			printSuccess("marked notification %d read", id)
			return nil
		})
	},
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent sync attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			runs, err := c.Runs(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, err := fmt.Fprintln(out, "No sync runs recorded.")
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-9s %4d/%-4d %8s  %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Result, r.Followers, r.Following, r.Duration, r.Reason)
			}
			return nil
		})
	},
}

func printToken(cmd *cobra.Command, tok ledger.Token, ok bool, format string, args ...any) error {
	if jsonOut {
		return outputJSON(cmd.OutOrStdout(), api.TokenResponse{OK: ok, Token: tok})
	}
	printSuccess(format, args...)
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "undo with: followctl undo %s\n", tok)
	return err
}

func init() {
	syncCmd.Flags().Bool("no-wait", false, "queue the sync and return immediately")
	usersCmd.Flags().Bool("newest", false, "order by follow time, newest first")
	notificationsCmd.Flags().Bool("unread", false, "only show unread notifications")
	undoCmd.Flags().Bool("dismiss", false, "drop the token without undoing")
	readCmd.Flags().Bool("all", false, "mark every notification read")
	runsCmd.Flags().Int("limit", 20, "number of runs to show")

	rootCmd.AddCommand(statusCmd, healthCmd, syncCmd, usersCmd, notificationsCmd,
		unfollowCmd, deleteCmd, undoCmd, readCmd, runsCmd)
}
