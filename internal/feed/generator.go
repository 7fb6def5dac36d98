// Package feed turns relationship deltas into an ordered notification feed.
package feed

import (
	"cmp"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/matheus3301/followtrack/internal/relation"
)

// UnfollowSpacing is the offset between synthesized unfollow timestamps.
// No real unfollow-detected-at time is tracked, so the i-th unfollow
// notification is stamped now - i*UnfollowSpacing.
const UnfollowSpacing = 2 * time.Hour

// SyntheticTimestamp returns the approximate event time for the i-th
// unfollow notification.
func SyntheticTimestamp(now time.Time, index int) time.Time {
	return now.Add(-time.Duration(index) * UnfollowSpacing)
}

// Limits caps how many notifications of each kind one build produces.
// MutualConnections and Milestones only apply when a previous snapshot is
// available.
type Limits struct {
	NewFollowers      int
	Unfollows         int
	MutualConnections int
	Milestones        bool
}

// Generator builds feeds and assigns monotonically increasing IDs.
type Generator struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewGenerator creates a generator. A nil clock uses time.Now.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Seed ensures future IDs are greater than id.
func (g *Generator) Seed(id uint64) {
	for {
		cur := g.last.Load()
		if id <= cur || g.last.CompareAndSwap(cur, id) {
			return
		}
	}
}

// Last returns the highest identifier handed out so far.
func (g *Generator) Last() uint64 {
	return g.last.Load()
}

// NextID returns a fresh identifier.
func (g *Generator) NextID() uint64 {
	return g.last.Add(1)
}

// Build produces notifications for current, newest first. previous may be
// nil on the first pass.
func (g *Generator) Build(previous *relation.Snapshot, current relation.Snapshot, lim Limits) []Record {
	now := g.now()
	var out []Record

	followers := current.Followers
	if previous != nil {
		followers = absentFrom(followers, previous.Followers)
	}
	for _, u := range head(followers, lim.NewFollowers) {
		out = append(out, g.newRecord(NewFollower, "New follower",
			fmt.Sprintf("%s started following you", handle(u)), u.FollowedAt, u.ID))
	}

	for i, u := range head(current.NotFollowingBack, lim.Unfollows) {
		out = append(out, g.newRecord(Unfollow, "Unfollow detected",
			fmt.Sprintf("%s is not following you back", handle(u)), SyntheticTimestamp(now, i), u.ID))
	}

	if previous != nil {
		for _, u := range head(absentFrom(current.Mutuals, previous.Mutuals), lim.MutualConnections) {
			out = append(out, g.newRecord(MutualConnection, "New mutual connection",
				fmt.Sprintf("You and %s now follow each other", handle(u)), now, u.ID))
		}
		if lim.Milestones {
			if m, ok := crossedMilestone(len(previous.Followers), len(current.Followers)); ok {
				out = append(out, g.newRecord(Milestone, fmt.Sprintf("%d followers", m),
					fmt.Sprintf("You reached %d followers", m), now, ""))
			}
		}
	}

	SortNewestFirst(out)
	return out
}

func (g *Generator) newRecord(t Type, title, msg string, ts time.Time, userID string) Record {
	return Record{
		ID:        g.NextID(),
		Type:      t,
		Title:     title,
		Message:   msg,
		Timestamp: ts,
		UserID:    userID,
	}
}

// SortNewestFirst orders records by timestamp descending, ties by ID so the
// result does not depend on generation order.
func SortNewestFirst(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func absentFrom(users, previous []relation.UserRecord) []relation.UserRecord {
	seen := relation.IDSet(previous)
	var out []relation.UserRecord
	for _, u := range users {
		if _, ok := seen[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func head(users []relation.UserRecord, n int) []relation.UserRecord {
	if n <= 0 {
		return nil
	}
	if len(users) > n {
		return users[:n]
	}
	return users
}

func handle(u relation.UserRecord) string {
	return "@" + u.Username
}

// crossedMilestone reports the highest milestone in (prev, cur].
func crossedMilestone(prev, cur int) (int, bool) {
	best, ok := 0, false
	for _, m := range milestonesUpTo(cur) {
		if m > prev {
			best, ok = m, true
		}
	}
	return best, ok
}

func milestonesUpTo(n int) []int {
	var out []int
	for _, m := range []int{100, 500} {
		if m <= n {
			out = append(out, m)
		}
	}
	for m := 1000; m <= n; m += 1000 {
		out = append(out, m)
	}
	return out
}
