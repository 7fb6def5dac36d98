// Package trend buckets timestamped events into fixed-width daily series.
package trend

import (
	"math"
	"time"

	"github.com/matheus3301/followtrack/internal/relation"
)

// Period lengths in daily buckets.
const (
	Week  = 7
	Month = 30
)

// Series is an ordered sequence of daily buckets, oldest first. The last
// bucket is "today".
type Series []float64

// Sum returns the total of all buckets.
func (s Series) Sum() float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return total
}

// Bucketize counts events per calendar day relative to now, in now's
// location. Events older than bucketCount days or dated in the future are
// dropped.
func Bucketize(events []time.Time, bucketCount int, now time.Time) Series {
	if bucketCount <= 0 {
		return Series{}
	}
	buckets := make(Series, bucketCount)
	today := startOfDay(now)
	for _, e := range events {
		diff := daysBetween(startOfDay(e.In(now.Location())), today)
		if diff < 0 || diff >= bucketCount {
			continue
		}
		buckets[bucketCount-1-diff]++
	}
	return buckets
}

// Cumulative returns the running total of raw.
func Cumulative(raw Series) Series {
	out := make(Series, len(raw))
	for i, v := range raw {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = out[i-1] + v
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween rounds so DST shifts do not move an event across days.
func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// Trends holds the dashboard series. Followers is cumulative growth while
// Unfollows stays a plain daily count.
type Trends struct {
	Followers Series `json:"followers"`
	Unfollows Series `json:"unfollows"`
}

// Weekly builds the 7-day dashboard trends.
func Weekly(snap relation.Snapshot, unfollowTimes []time.Time, now time.Time) Trends {
	return Over(Week, snap, unfollowTimes, now)
}

// Over builds trends over an arbitrary number of daily buckets.
func Over(days int, snap relation.Snapshot, unfollowTimes []time.Time, now time.Time) Trends {
	followTimes := make([]time.Time, len(snap.Followers))
	for i, u := range snap.Followers {
		followTimes[i] = u.FollowedAt
	}
	return Trends{
		Followers: Cumulative(Bucketize(followTimes, days, now)),
		Unfollows: Bucketize(unfollowTimes, days, now),
	}
}
