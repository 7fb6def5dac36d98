// Package source defines the relationship data source consumed by a sync.
package source

import (
	"context"
	"fmt"

	"github.com/matheus3301/followtrack/internal/relation"
)

// Relationships is the payload of one fetch. Fields are never nil.
type Relationships struct {
	Followers         []relation.UserRecord `json:"followers"`
	Following         []relation.UserRecord `json:"following"`
	NotFollowingBack  []relation.UserRecord `json:"not_following_back"`
	NotFollowedBack   []relation.UserRecord `json:"not_followed_back"`
	MutualConnections []relation.UserRecord `json:"mutual_connections"`
}

// Profile describes the account whose relationships are tracked.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// DataSource fetches relationships for the tracked account.
type DataSource interface {
	FetchFollowerRelationships(ctx context.Context) (Relationships, error)
	FetchProfile(ctx context.Context) (Profile, error)
}

// FetchError reports that the source could not be reached or returned
// malformed data. Reason is suitable for display.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Unreachable wraps a transport failure.
func Unreachable(err error) *FetchError {
	return &FetchError{Reason: "relationship source unreachable", Err: err}
}

// Malformed wraps a validation failure on fetched data.
func Malformed(err error) *FetchError {
	return &FetchError{Reason: "relationship source returned malformed data", Err: err}
}

// Normalize replaces nil slices with empty ones.
func (r Relationships) Normalize() Relationships {
	for _, p := range []*[]relation.UserRecord{&r.Followers, &r.Following, &r.NotFollowingBack, &r.NotFollowedBack, &r.MutualConnections} {
		if *p == nil {
			*p = []relation.UserRecord{}
		}
	}
	return r
}
