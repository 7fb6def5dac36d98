package relation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterRemoveAndAppend(t *testing.T) {
	r := NewRoster([]UserRecord{user("1", day), user("2", day), user("3", day)})
	require.Equal(t, 3, r.Len())

	u, ok := r.Remove("2")
	require.True(t, ok)
	assert.Equal(t, "2", u.ID)
	assert.NotContains(t, IDs(r.Users()), "2")
	assert.Equal(t, []string{"1", "3"}, IDs(r.Users()))

	_, ok = r.Remove("2")
	assert.False(t, ok, "second remove is a no-op")

	assert.True(t, r.Append(u))
	assert.False(t, r.Append(u), "duplicate append rejected")
	assert.Equal(t, []string{"1", "3", "2"}, IDs(r.Users()))
}

func TestRosterCompaction(t *testing.T) {
	var users []UserRecord
	for i := range 10 {
		users = append(users, user(fmt.Sprint(i), time.Duration(i)*time.Hour))
	}
	r := NewRoster(users)

	for i := range 8 {
		_, ok := r.Remove(fmt.Sprint(i))
		require.True(t, ok)
	}

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"8", "9"}, IDs(r.Users()))
	for id, i := range r.index {
		assert.Equal(t, id, r.slots[i].user.ID, "index points at its own slot")
		assert.True(t, r.slots[i].alive)
	}
	assert.LessOrEqual(t, len(r.slots), 4, "tombstones should have been compacted")
}

func TestRosterDuplicateKeepsFirst(t *testing.T) {
	r := NewRoster([]UserRecord{user("1", day), user("1", 2*day)})
	assert.Equal(t, 1, r.Len())
	require.Len(t, r.Users(), 1)
	assert.Equal(t, now.Add(-day), r.Users()[0].FollowedAt)
}
