// Package sync owns the reconciliation session: it fetches relationships,
// rebuilds the snapshot and feed, writes them through to the cache and
// applies user mutations through the undo ledger.
package sync

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/followtrack/internal/bus"
	"github.com/matheus3301/followtrack/internal/cache"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/ledger"
	"github.com/matheus3301/followtrack/internal/metrics"
	"github.com/matheus3301/followtrack/internal/relation"
	"github.com/matheus3301/followtrack/internal/source"
	"github.com/matheus3301/followtrack/internal/status"
	"github.com/matheus3301/followtrack/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSyncInProgress is returned to a Sync call that overlaps a running one.
var ErrSyncInProgress = errors.New("sync already in progress")

// Options tunes a session.
type Options struct {
	Profile string
	Limits  feed.Limits
	// MaxNotifications caps the merged feed; 0 keeps everything.
	MaxNotifications int
	UndoWindow       time.Duration
	Now              func() time.Time
}

// RunStore persists sync history. *store.DB implements it.
type RunStore interface {
	InsertRun(ctx context.Context, r *store.SyncRun) error
}

// Deps are the session collaborators. Source and Cache are required.
type Deps struct {
	Source  source.DataSource
	Cache   *cache.Cache
	Runs    RunStore
	Status  *status.Machine
	Bus     *bus.Bus
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Session is the single owner of the relationship snapshot, the feed and
// the undo ledger for one profile. All methods are safe for concurrent use.
type Session struct {
	source  source.DataSource
	cache   *cache.Cache
	runs    RunStore
	status  *status.Machine
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options

	gen    *feed.Generator
	ledger *ledger.Ledger

	inFlight atomic.Bool
	// persistMu orders cache writes; it is always taken before mu.
	persistMu sync.Mutex

	mu          sync.RWMutex
	snapshot    *relation.Snapshot
	profile     source.Profile
	dashboard   Dashboard
	suppressed  map[feed.Key]struct{}
	lastUpdated time.Time
	lastError   string
}

// NewSession creates an empty session. Call LoadCached to render cached
// content before the first Sync.
func NewSession(d Deps, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Status == nil {
		d.Status = status.NewMachine(d.Bus)
	}
	d.Cache.OnError(d.Metrics.CacheError)
	return &Session{
		source:     d.Source,
		cache:      d.Cache,
		runs:       d.Runs,
		status:     d.Status,
		bus:        d.Bus,
		metrics:    d.Metrics,
		logger:     d.Logger,
		opts:       opts,
		gen:        feed.NewGenerator(opts.Now),
		ledger:     ledger.New(nil, nil, opts.Now),
		suppressed: make(map[feed.Key]struct{}),
	}
}

// Status returns the session state machine.
func (s *Session) Status() *status.Machine {
	return s.status
}

// Syncing reports whether a sync is in flight.
func (s *Session) Syncing() bool {
	return s.inFlight.Load()
}

// LoadCached restores the last written state when a full sync has been
// cached before. It never touches the network; with nothing cached the
// session stays empty and LoadCached returns false.
func (s *Session) LoadCached(ctx context.Context) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	loaded := s.snapshot != nil
	s.mu.RUnlock()
	if loaded {
		return true
	}
	if !s.cache.HasSyncedBefore(ctx) {
		return false
	}

	var (
		rel       relationshipsPayload
		nots      notificationsPayload
		dash      Dashboard
		prof      source.Profile
		last      time.Time
		okRel     bool
		okDash    bool
		okUpdated bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { okRel = cache.Load(gctx, s.cache, cache.KeyRelationships, &rel); return nil })
	g.Go(func() error { cache.Load(gctx, s.cache, cache.KeyNotifications, &nots); return nil })
	g.Go(func() error { okDash = cache.Load(gctx, s.cache, cache.KeyDashboardMetrics, &dash); return nil })
	g.Go(func() error { cache.Load(gctx, s.cache, cache.KeyUserProfile, &prof); return nil })
	g.Go(func() error { last, okUpdated = s.cache.LastUpdated(gctx); return nil })
	_ = g.Wait()

	if !okRel {
		s.logger.Warn("cached relationships unavailable, waiting for sync")
		return false
	}
	if err := errors.Join(relation.ValidateAll(rel.Followers), relation.ValidateAll(rel.Following)); err != nil {
		s.logger.Warn("discarding invalid cached relationships", zap.Error(err))
		return false
	}

	snap := relation.Reconcile(rel.Followers, rel.Following, rel.CapturedAt)
	records := nots.Records
	if !okDash {
		dash = buildDashboard(snap, records, s.opts.Now())
	}
	if !okUpdated {
		last = rel.CapturedAt
	}

	s.gen.Seed(max(nots.LastID, feed.New(records).MaxID()))

	s.mu.Lock()
	s.snapshot = &snap
	s.profile = prof
	s.dashboard = dash
	s.lastUpdated = last
	s.suppressed = make(map[feed.Key]struct{}, len(nots.Suppressed))
	for _, k := range nots.Suppressed {
		s.suppressed[k] = struct{}{}
	}
	s.ledger.Reset(snap.Following, records)
	s.mu.Unlock()

	s.observe(snap, dash)
	if err := s.status.Transition(status.Cached); err != nil {
		s.logger.Debug("status unchanged", zap.Error(err))
	}
	s.logger.Info("cached state loaded",
		zap.Int("followers", len(snap.Followers)),
		zap.Int("following", len(snap.Following)),
		zap.Int("notifications", len(records)),
		zap.Time("last_updated", last),
	)
	return true
}

// View is the read-only state handed to the UI boundary. Slices are copies
// and never nil.
type View struct {
	Status           status.State          `json:"status"`
	HasSynced        bool                  `json:"has_synced"`
	Syncing          bool                  `json:"syncing"`
	LastUpdated      time.Time             `json:"last_updated"`
	LastError        string                `json:"last_error,omitempty"`
	Profile          source.Profile        `json:"profile"`
	Dashboard        Dashboard             `json:"dashboard"`
	Followers        []relation.UserRecord `json:"followers"`
	Following        []relation.UserRecord `json:"following"`
	Mutuals          []relation.UserRecord `json:"mutuals"`
	NotFollowingBack []relation.UserRecord `json:"not_following_back"`
	NotFollowedBack  []relation.UserRecord `json:"not_followed_back"`
	Notifications    []feed.Record         `json:"notifications"`
	PendingUndo      int                   `json:"pending_undo"`
}

// View returns the current state. Without cached or fetched data it is an
// empty but valid view.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Status:        s.status.Current(),
		Syncing:       s.inFlight.Load(),
		LastError:     s.lastError,
		Profile:       s.profile,
		Dashboard:     s.dashboard,
		Notifications: s.ledger.Notifications(),
		PendingUndo:   s.ledger.Pending(),
	}
	snap := relation.Snapshot{}
	if s.snapshot != nil {
		snap = *s.snapshot
		v.HasSynced = true
		v.LastUpdated = s.lastUpdated
	}
	v.Followers = clone(snap.Followers)
	v.Following = clone(snap.Following)
	v.Mutuals = clone(snap.Mutuals)
	v.NotFollowingBack = clone(snap.NotFollowingBack)
	v.NotFollowedBack = clone(snap.NotFollowedBack)
	if v.Notifications == nil {
		v.Notifications = []feed.Record{}
	}
	return v
}

func clone(users []relation.UserRecord) []relation.UserRecord {
	if users == nil {
		return []relation.UserRecord{}
	}
	return slices.Clone(users)
}

// observe pushes snapshot sizes to the gauges.
func (s *Session) observe(snap relation.Snapshot, dash Dashboard) {
	s.metrics.Relationships(map[string]int{
		"followers":          len(snap.Followers),
		"following":          len(snap.Following),
		"mutuals":            len(snap.Mutuals),
		"not_following_back": len(snap.NotFollowingBack),
		"not_followed_back":  len(snap.NotFollowedBack),
	})
	s.metrics.Unread(dash.Unread)
}

// stateLocked captures what a write-through persists. Callers hold mu.
func (s *Session) stateLocked(now time.Time) (state, bool) {
	if s.snapshot == nil {
		return state{}, false
	}
	return state{
		snapshot:   *s.snapshot,
		records:    s.ledger.Notifications(),
		suppressed: maps.Clone(s.suppressed),
		dashboard:  s.dashboard,
		lastID:     s.gen.Last(),
		at:         now,
	}, true
}
