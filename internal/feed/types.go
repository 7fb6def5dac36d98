package feed

import "time"

// Type enumerates notification kinds.
type Type string

const (
	NewFollower      Type = "new_follower"
	Unfollow         Type = "unfollow"
	MutualConnection Type = "mutual_connection"
	Milestone        Type = "milestone"
	System           Type = "system"
)

// Record is a single notification. IDs are assigned by a Generator and are
// never reused.
type Record struct {
	ID        uint64    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
}

// Key identifies what a notification is about, independent of its ID.
type Key struct {
	Type Type   `json:"type"`
	Ref  string `json:"ref"`
}

// Key returns the record's identity across regenerations. Records without a
// user reference are keyed by title.
func (r Record) Key() Key {
	if r.UserID != "" {
		return Key{Type: r.Type, Ref: r.UserID}
	}
	return Key{Type: r.Type, Ref: r.Title}
}
