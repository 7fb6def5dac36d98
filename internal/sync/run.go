package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/followtrack/internal/bus"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/relation"
	"github.com/matheus3301/followtrack/internal/source"
	"github.com/matheus3301/followtrack/internal/status"
	"github.com/matheus3301/followtrack/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run results recorded in history and metrics.
const (
	ResultOK        = "ok"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
	ResultCancelled = "cancelled"
)

// Result describes a completed sync.
type Result struct {
	RunID            string          `json:"run_id"`
	Counts           relation.Counts `json:"counts"`
	NewNotifications int             `json:"new_notifications"`
	// Persisted is false when the write-through failed; the in-memory state
	// is still applied.
	Persisted bool          `json:"persisted"`
	Duration  time.Duration `json:"duration"`
}

// Sync fetches relationships, reconciles them, rebuilds the feed and writes
// everything through to the cache in one batch. An overlapping call returns
// ErrSyncInProgress without side effects on the cache. Fetch failures are
// returned as *source.FetchError and leave the cache untouched. A cancelled
// ctx discards the fetched data unless the write already happened.
func (s *Session) Sync(ctx context.Context) (Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.reject()
		return Result{}, ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	started := s.opts.Now()
	run := &store.SyncRun{ID: uuid.NewString(), Profile: s.opts.Profile, StartedAt: started}
	before := s.status.Current()
	s.transition(status.Syncing)
	s.bus.Emit(bus.SyncStarted, run.ID)

	rel, prof, err := s.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, s.cancelled(run, before, ctx.Err())
		}
		return Result{}, s.failed(run, err)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	// Held across the write so the swap of snapshot, feed and ledger is
	// never observed half done.
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	snap := relation.Reconcile(rel.Followers, rel.Following, now)
	previous := s.snapshot
	prevRecords := s.ledger.Notifications()
	suppressed := pruneSuppressed(s.suppressed, snap)

	built := s.gen.Build(previous, snap, s.opts.Limits)
	records := feed.Merge(built, prevRecords, suppressed, s.opts.MaxNotifications)
	dash := buildDashboard(snap, records, now)
	st := state{snapshot: snap, records: records, suppressed: suppressed, dashboard: dash, lastID: s.gen.Last(), profile: &prof, at: now}

	items, err := st.items(true)
	if err != nil {
		s.lastError = err.Error()
		return Result{}, s.finishFailed(run, err, err.Error(), previous != nil)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, s.cancelled(run, before, err)
	}
	persisted := true
	if err := s.cache.PutMany(ctx, items, now); err != nil {
		if ctx.Err() != nil {
			return Result{}, s.cancelled(run, before, ctx.Err())
		}
		persisted = false
		s.logger.Warn("write-through failed, keeping in-memory state", zap.String("run_id", run.ID), zap.Error(err))
	}

	s.snapshot = &snap
	s.profile = prof
	s.dashboard = dash
	s.suppressed = suppressed
	s.lastUpdated = now
	s.lastError = ""
	s.ledger.Reset(snap.Following, records)

	run.Result = ResultOK
	run.Followers = len(snap.Followers)
	run.Following = len(snap.Following)
	run.Duration = s.opts.Now().Sub(started)
	s.recordRun(ctx, run)
	s.metrics.Sync(ResultOK, run.Duration)
	s.observe(snap, dash)
	s.transition(status.Ready)

	res := Result{
		RunID:            run.ID,
		Counts:           dash.Counts,
		NewNotifications: newRecords(records, prevRecords),
		Persisted:        persisted,
		Duration:         run.Duration,
	}
	s.bus.Emit(bus.SyncCompleted, res)
	s.bus.Emit(bus.FeedUpdated, len(records))
	s.logger.Info("sync completed",
		zap.String("run_id", run.ID),
		zap.Int("followers", run.Followers),
		zap.Int("following", run.Following),
		zap.Int("mutuals", dash.Counts.Mutuals),
		zap.Int("new_notifications", res.NewNotifications),
		zap.Duration("duration", run.Duration),
	)
	return res, nil
}

// fetch loads relationships and the profile concurrently and validates
// every record. All errors are *source.FetchError.
func (s *Session) fetch(ctx context.Context) (source.Relationships, source.Profile, error) {
	var (
		rel  source.Relationships
		prof source.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rel, err = s.source.FetchFollowerRelationships(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prof, err = s.source.FetchProfile(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		var fe *source.FetchError
		if !errors.As(err, &fe) {
			fe = source.Unreachable(err)
		}
		return rel, prof, fe
	}
	rel = rel.Normalize()
	if err := errors.Join(relation.ValidateAll(rel.Followers), relation.ValidateAll(rel.Following)); err != nil {
		return rel, prof, source.Malformed(err)
	}
	return rel, prof, nil
}

func (s *Session) reject() {
	s.recordRun(context.Background(), &store.SyncRun{
		ID:        uuid.NewString(),
		Profile:   s.opts.Profile,
		Result:    ResultRejected,
		Reason:    ErrSyncInProgress.Error(),
		StartedAt: s.opts.Now(),
	})
	s.metrics.Sync(ResultRejected, 0)
	s.bus.Emit(bus.SyncRejected, nil)
	s.logger.Debug("sync rejected, another sync is in flight")
}

func (s *Session) failed(run *store.SyncRun, err error) error {
	reason := err.Error()
	var fe *source.FetchError
	if errors.As(err, &fe) {
		reason = fe.Reason
	}

	s.mu.Lock()
	s.lastError = reason
	hasData := s.snapshot != nil
	s.mu.Unlock()
	return s.finishFailed(run, err, reason, hasData)
}

func (s *Session) finishFailed(run *store.SyncRun, err error, reason string, hasData bool) error {
	run.Result = ResultFailed
	run.Reason = reason
	run.Duration = s.opts.Now().Sub(run.StartedAt)
	s.recordRun(context.Background(), run)
	s.metrics.Sync(ResultFailed, run.Duration)
	if hasData {
		s.transition(status.Degraded)
	} else {
		s.transition(status.Error)
	}
	s.bus.Emit(bus.SyncFailed, reason)
	s.logger.Warn("sync failed", zap.String("run_id", run.ID), zap.Error(err))
	return err
}

func (s *Session) cancelled(run *store.SyncRun, before status.State, err error) error {
	run.Result = ResultCancelled
	run.Reason = err.Error()
	run.Duration = s.opts.Now().Sub(run.StartedAt)
	s.recordRun(context.Background(), run)
	s.metrics.Sync(ResultCancelled, run.Duration)
	s.transition(before)
	s.bus.Emit(bus.SyncCancelled, run.ID)
	s.logger.Info("sync cancelled, fetched data discarded", zap.String("run_id", run.ID))
	return err
}

func (s *Session) recordRun(ctx context.Context, run *store.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.InsertRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Session) transition(to status.State) {
	if err := s.status.Transition(to); err != nil {
		s.logger.Debug("status transition skipped", zap.Error(err))
	}
}

// pruneSuppressed copies the suppressed keys, dropping those whose subject
// has left the set the notification was about: unfollows for accounts that
// now follow back or are no longer followed, new followers that stopped
// following and mutual connections that are no longer mutual.
func pruneSuppressed(suppressed map[feed.Key]struct{}, snap relation.Snapshot) map[feed.Key]struct{} {
	members := map[feed.Type]map[string]struct{}{
		feed.Unfollow:         relation.IDSet(snap.NotFollowingBack),
		feed.NewFollower:      relation.IDSet(snap.Followers),
		feed.MutualConnection: relation.IDSet(snap.Mutuals),
	}
	out := make(map[feed.Key]struct{}, len(suppressed))
	for k := range suppressed {
		if set, tracked := members[k.Type]; tracked {
			if _, ok := set[k.Ref]; !ok {
				continue
			}
		}
		out[k] = struct{}{}
	}
	return out
}

func newRecords(records, previous []feed.Record) int {
	seen := make(map[uint64]struct{}, len(previous))
	for _, r := range previous {
		seen[r.ID] = struct{}{}
	}
	n := 0
	for _, r := range records {
		if _, ok := seen[r.ID]; !ok {
			n++
		}
	}
	return n
}
