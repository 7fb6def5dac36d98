package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/matheus3301/followtrack/internal/relation"
)

// MockOptions configures the synthetic source.
type MockOptions struct {
	Seed      int64
	Followers int
	Following int
	// Overlap is the share of followed accounts that also follow back.
	Overlap float64
	// Churn is the per-fetch probability that a follower leaves; the same
	// probability drives new followers joining.
	Churn float64
	// Latency delays each fetch.
	Latency time.Duration
	Now     func() time.Time
}

// Mock is a deterministic synthetic relationship source.
type Mock struct {
	mu        sync.Mutex
	faker     *gofakeit.Faker
	opts      MockOptions
	followers []relation.UserRecord
	following []relation.UserRecord
	nextID    int
	fetches   int
	failNext  error
}

// NewMock seeds a synthetic account graph.
func NewMock(opts MockOptions) *Mock {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Mock{faker: gofakeit.New(opts.Seed), opts: opts}
	now := opts.Now()

	mutual := int(float64(min(opts.Following, opts.Followers)) * opts.Overlap)
	for range opts.Followers {
		m.followers = append(m.followers, m.account(now))
	}
	for i := range opts.Following {
		if i < mutual {
			u := m.followers[i]
			u.FollowedAt = m.pastTime(now)
			m.following = append(m.following, u)
			continue
		}
		m.following = append(m.following, m.account(now))
	}
	return m
}

// FailNext makes the next fetch return err.
func (m *Mock) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Fetches returns how many successful fetches were served.
func (m *Mock) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// FetchFollowerRelationships returns both lists, churning them on every call
// after the first.
func (m *Mock) FetchFollowerRelationships(ctx context.Context) (Relationships, error) {
	if m.opts.Latency > 0 {
		select {
		case <-time.After(m.opts.Latency):
		case <-ctx.Done():
			return Relationships{}, Unreachable(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return Relationships{}, Unreachable(err)
	}
	if m.fetches > 0 {
		m.churn(m.opts.Now())
	}
	m.fetches++

	snap := relation.Reconcile(m.followers, m.following, m.opts.Now())
	return Relationships{
		Followers:         snap.Followers,
		Following:         snap.Following,
		NotFollowingBack:  snap.NotFollowingBack,
		NotFollowedBack:   snap.NotFollowedBack,
		MutualConnections: snap.Mutuals,
	}.Normalize(), nil
}

// FetchProfile returns a fixed account owner.
func (m *Mock) FetchProfile(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, Unreachable(err)
	}
	return Profile{ID: "self", Username: "me", DisplayName: "You"}, nil
}

func (m *Mock) churn(now time.Time) {
	kept := m.followers[:0]
	for _, u := range m.followers {
		if m.faker.Float64Range(0, 1) < m.opts.Churn {
			continue
		}
		kept = append(kept, u)
	}
	m.followers = kept

	joins := int(float64(m.opts.Followers)*m.opts.Churn + 0.5)
	for range joins {
		u := m.account(now)
		u.FollowedAt = now.Add(-time.Duration(m.faker.Number(0, 59)) * time.Minute)
		// Newest followers come first, as a live API would list them.
		m.followers = append([]relation.UserRecord{u}, m.followers...)
	}
}

func (m *Mock) account(now time.Time) relation.UserRecord {
	m.nextID++
	return relation.UserRecord{
		ID:              fmt.Sprintf("u%05d", m.nextID),
		Username:        m.faker.Username(),
		DisplayName:     m.faker.Name(),
		FollowedAt:      m.pastTime(now),
		IsActive:        m.faker.Bool(),
		EngagementScore: m.faker.Number(0, 100),
	}
}

func (m *Mock) pastTime(now time.Time) time.Time {
	return now.Add(-time.Duration(m.faker.Number(1, 14*24*60)) * time.Minute)
}

// ErrOffline is a convenience failure for FailNext.
var ErrOffline = errors.New("offline")
