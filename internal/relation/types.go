package relation

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a user record is missing a field the
// relationship math depends on.
var ErrInvalidRecord = errors.New("invalid user record")

// UserRecord represents an account on either side of a follow relationship.
type UserRecord struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	Username        string    `json:"username"`
	FollowedAt      time.Time `json:"followed_at"`
	IsActive        bool      `json:"is_active"`
	EngagementScore int       `json:"engagement_score"`
	// FollowsBack is derived by Reconcile. On a follower it means the account
	// is followed back; on a followed account it means it follows back.
	FollowsBack bool `json:"follows_back"`
}

// NewUserRecord builds a validated record.
func NewUserRecord(id, username, displayName string, followedAt time.Time) (UserRecord, error) {
	u := UserRecord{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		FollowedAt:  followedAt,
	}
	if err := u.Validate(); err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

// Validate checks the fields reconciliation relies on.
func (u UserRecord) Validate() error {
	switch {
	case u.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case u.Username == "":
		return fmt.Errorf("%w: %s: missing username", ErrInvalidRecord, u.ID)
	case u.FollowedAt.IsZero():
		return fmt.Errorf("%w: %s: missing follow timestamp", ErrInvalidRecord, u.ID)
	}
	return nil
}

// ValidateAll validates every record and reports the first failure.
func ValidateAll(users []UserRecord) error {
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is the result of one reconciliation pass.
type Snapshot struct {
	Followers        []UserRecord `json:"followers"`
	Following        []UserRecord `json:"following"`
	Mutuals          []UserRecord `json:"mutuals"`
	NotFollowingBack []UserRecord `json:"not_following_back"`
	NotFollowedBack  []UserRecord `json:"not_followed_back"`
	CapturedAt       time.Time    `json:"captured_at"`
}

// IDs returns the identifiers of users in order.
func IDs(users []UserRecord) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// IDSet returns the set of identifiers present in users.
func IDSet(users []UserRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		set[u.ID] = struct{}{}
	}
	return set
}
