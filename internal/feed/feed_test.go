package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Record {
	return []Record{
		{ID: 3, Type: NewFollower, UserID: "a", Timestamp: now},
		{ID: 1, Type: Unfollow, UserID: "b", Timestamp: now.Add(-1)},
		{ID: 2, Type: Milestone, Title: "100 followers", Timestamp: now.Add(-2)},
	}
}

func TestFeedMarkRead(t *testing.T) {
	f := New(sample())
	assert.Equal(t, 3, f.UnreadCount())

	assert.True(t, f.MarkRead(1))
	assert.False(t, f.MarkRead(42))
	assert.Equal(t, 2, f.UnreadCount())

	assert.Equal(t, 2, f.MarkAllRead())
	assert.Equal(t, 0, f.UnreadCount())
}

func TestFeedRemoveAndPrepend(t *testing.T) {
	f := New(sample())

	r, ok := f.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "b", r.UserID)
	assert.Equal(t, 2, f.Len())

	_, ok = f.Remove(1)
	assert.False(t, ok)

	f.Prepend(r)
	assert.Equal(t, uint64(1), f.Records()[0].ID)
	assert.Equal(t, uint64(3), f.MaxID())
}

func TestFeedRecordsIsCopy(t *testing.T) {
	f := New(sample())
	recs := f.Records()
	recs[0].Read = true
	got, _ := f.Find(3)
	assert.False(t, got.Read)
}

func TestMerge(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	previous := []Record{
		{ID: 1, Type: NewFollower, UserID: "a", Read: true, Timestamp: now.Add(-time.Hour)},
		{ID: 2, Type: Unfollow, UserID: "b", Timestamp: now.Add(-2 * time.Hour)},
		{ID: 3, Type: NewFollower, UserID: "old", Timestamp: now.Add(-48 * time.Hour)},
		{ID: 4, Type: Unfollow, UserID: "gone", Read: true, Timestamp: now.Add(-4 * time.Hour)},
	}
	regenerated := []Record{
		{ID: 10, Type: NewFollower, UserID: "a", Timestamp: now.Add(-time.Hour)},
		{ID: 11, Type: Unfollow, UserID: "b", Timestamp: now},
		{ID: 12, Type: Unfollow, UserID: "c", Timestamp: now.Add(-2 * time.Hour)},
		{ID: 13, Type: Milestone, Title: "500 followers", Timestamp: now},
	}
	suppressed := map[Key]struct{}{{Type: Unfollow, Ref: "c"}: {}}

	got := Merge(regenerated, previous, suppressed, 0)

	var ids []uint64
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	// b keeps its ID, a keeps ID and read flag, old is retained, gone is
	// dropped because unfollows are recomputed, c is suppressed.
	assert.Equal(t, []uint64{2, 13, 1, 3}, ids)
	assert.True(t, got[2].Read)
	assert.True(t, got[0].Timestamp.Equal(now), "regenerated content wins")
}

func TestMergeLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	previous := []Record{
		{ID: 1, Type: NewFollower, UserID: "a", Timestamp: now.Add(-3 * time.Hour)},
		{ID: 2, Type: NewFollower, UserID: "b", Timestamp: now.Add(-2 * time.Hour)},
	}
	regenerated := []Record{{ID: 3, Type: NewFollower, UserID: "c", Timestamp: now}}

	got := Merge(regenerated, previous, nil, 2)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].ID)
	assert.Equal(t, uint64(2), got[1].ID)
}
