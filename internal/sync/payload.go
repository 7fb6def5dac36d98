package sync

import (
	"fmt"
	"time"

	"github.com/matheus3301/followtrack/internal/cache"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/relation"
	"github.com/matheus3301/followtrack/internal/source"
	"github.com/matheus3301/followtrack/internal/trend"
)

// Dashboard is the summary cached under dashboard_metrics.
type Dashboard struct {
	Counts     relation.Counts `json:"counts"`
	Trends     trend.Trends    `json:"trends"`
	Unread     int             `json:"unread"`
	ComputedAt time.Time       `json:"computed_at"`
}

// relationshipsPayload keeps only the raw lists; derived sets are rebuilt on
// load so a cached snapshot can never violate the partition invariant.
type relationshipsPayload struct {
	Followers  []relation.UserRecord `json:"followers"`
	Following  []relation.UserRecord `json:"following"`
	CapturedAt time.Time             `json:"captured_at"`
}

// LastID is the generator high-water mark, so IDs of deleted or trimmed
// records are not handed out again after a restart.
type notificationsPayload struct {
	Records    []feed.Record `json:"records"`
	Suppressed []feed.Key    `json:"suppressed,omitempty"`
	LastID     uint64        `json:"last_id,omitempty"`
}

// state is everything one write-through persists.
type state struct {
	snapshot   relation.Snapshot
	records    []feed.Record
	suppressed map[feed.Key]struct{}
	dashboard  Dashboard
	lastID     uint64
	profile    *source.Profile
	at         time.Time
}

func buildDashboard(snap relation.Snapshot, records []feed.Record, now time.Time) Dashboard {
	unread := 0
	var unfollowTimes []time.Time
	for _, r := range records {
		if !r.Read {
			unread++
		}
		if r.Type == feed.Unfollow {
			unfollowTimes = append(unfollowTimes, r.Timestamp)
		}
	}
	return Dashboard{
		Counts:     relation.Summarize(snap),
		Trends:     trend.Weekly(snap, unfollowTimes, now),
		Unread:     unread,
		ComputedAt: now,
	}
}

type payload struct {
	key string
	v   any
}

// items encodes st for a single PutMany. full adds the profile and the
// sync markers written only after a fetch.
func (st state) items(full bool) ([]cache.Item, error) {
	suppressed := make([]feed.Key, 0, len(st.suppressed))
	for k := range st.suppressed {
		suppressed = append(suppressed, k)
	}
	values := []payload{
		{cache.KeyRelationships, relationshipsPayload{
			Followers:  st.snapshot.Followers,
			Following:  st.snapshot.Following,
			CapturedAt: st.snapshot.CapturedAt,
		}},
		{cache.KeyNotifications, notificationsPayload{Records: st.records, Suppressed: suppressed, LastID: st.lastID}},
		{cache.KeyDashboardMetrics, st.dashboard},
	}
	if full {
		if st.profile != nil {
			values = append(values, payload{cache.KeyUserProfile, *st.profile})
		}
		values = append(values,
			payload{cache.KeyLastUpdated, st.at},
			payload{cache.KeyHasSynced, true},
		)
	}

	out := make([]cache.Item, 0, len(values))
	for _, p := range values {
		it, err := cache.Encode(p.key, p.v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.key, err)
		}
		out = append(out, it)
	}
	return out, nil
}
