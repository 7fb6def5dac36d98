package relation

import (
	"slices"
	"strings"
	"time"
)

// Reconcile derives the relationship sets from raw follower and following
// lists. Output sequences keep input order and derived subsets keep the
// relative order of their source list. Duplicate identifiers collapse to one
// entry at the first position, carrying the last occurrence's fields.
//
// Records are expected to have passed Validate.
func Reconcile(followers, following []UserRecord, capturedAt time.Time) Snapshot {
	followers = dedupe(followers)
	following = dedupe(following)

	followingSet := IDSet(following)
	followerSet := IDSet(followers)

	snap := Snapshot{
		Followers:        make([]UserRecord, 0, len(followers)),
		Following:        make([]UserRecord, 0, len(following)),
		Mutuals:          []UserRecord{},
		NotFollowingBack: []UserRecord{},
		NotFollowedBack:  []UserRecord{},
		CapturedAt:       capturedAt,
	}

	for _, u := range followers {
		_, u.FollowsBack = followingSet[u.ID]
		snap.Followers = append(snap.Followers, u)
		if u.FollowsBack {
			snap.Mutuals = append(snap.Mutuals, u)
		} else {
			snap.NotFollowedBack = append(snap.NotFollowedBack, u)
		}
	}

	for _, u := range following {
		_, u.FollowsBack = followerSet[u.ID]
		snap.Following = append(snap.Following, u)
		if !u.FollowsBack {
			snap.NotFollowingBack = append(snap.NotFollowingBack, u)
		}
	}

	return snap
}

func dedupe(users []UserRecord) []UserRecord {
	pos := make(map[string]int, len(users))
	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		if i, ok := pos[u.ID]; ok {
			out[i] = u
			continue
		}
		pos[u.ID] = len(out)
		out = append(out, u)
	}
	return out
}

// SortNewestFirst returns a copy of users ordered by follow timestamp
// descending, ties broken by identifier ascending.
func SortNewestFirst(users []UserRecord) []UserRecord {
	out := slices.Clone(users)
	slices.SortStableFunc(out, func(a, b UserRecord) int {
		if c := b.FollowedAt.Compare(a.FollowedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// WithFollowing reconciles the snapshot again against a replacement following list.
// Followers are kept as-is.
func (s Snapshot) WithFollowing(following []UserRecord) Snapshot {
	return Reconcile(s.Followers, following, s.CapturedAt)
}
