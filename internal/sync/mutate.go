package sync

import (
	"context"
	"strconv"

	"github.com/matheus3301/followtrack/internal/bus"
	"github.com/matheus3301/followtrack/internal/ledger"
	"go.uber.org/zap"
)

// Mutation is the payload of ledger events.
type Mutation struct {
	Action string       `json:"action"`
	Ref    string       `json:"ref"`
	Token  ledger.Token `json:"token,omitempty"`
}

// RemoveFollowing drops id from the following list and returns an undo
// token. ok is false when id is not followed.
func (s *Session) RemoveFollowing(ctx context.Context, id string) (tok ledger.Token, ok bool) {
	s.mu.Lock()
	tok, ok = s.ledger.RemoveFollowing(id)
	if ok {
		s.refreshLocked()
	}
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	s.metrics.Undo("issued", 1)
	s.bus.Emit(bus.LedgerMutated, Mutation{Action: "remove_following", Ref: id, Token: tok})
	s.persist(ctx)
	return tok, true
}

// DeleteNotification removes a notification and keeps it from being
// regenerated by later syncs until undone.
func (s *Session) DeleteNotification(ctx context.Context, id uint64) (tok ledger.Token, ok bool) {
	s.mu.Lock()
	tok, ok = s.ledger.DeleteNotification(id)
	if ok {
		if rec, found := s.ledger.Peek(tok); found {
			s.suppressed[rec.(ledger.DeletedNotification).Notification.Key()] = struct{}{}
		}
		s.refreshLocked()
	}
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	s.metrics.Undo("issued", 1)
	s.bus.Emit(bus.LedgerMutated, Mutation{Action: "delete_notification", Ref: strconv.FormatUint(id, 10), Token: tok})
	s.persist(ctx)
	return tok, true
}

// Undo reverses the mutation behind tok. It returns false for consumed,
// expired or unknown tokens.
func (s *Session) Undo(ctx context.Context, tok ledger.Token) bool {
	s.mu.Lock()
	rec, ok := s.ledger.Undo(tok)
	if ok {
		if dn, isNotification := rec.(ledger.DeletedNotification); isNotification {
			delete(s.suppressed, dn.Notification.Key())
		}
		s.refreshLocked()
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.metrics.Undo("undone", 1)
	s.bus.Emit(bus.LedgerUndone, Mutation{Action: "undo", Token: tok})
	s.persist(ctx)
	return true
}

// Dismiss drops tok without undoing, as when the undo prompt closes.
func (s *Session) Dismiss(tok ledger.Token) bool {
	_, ok := s.ledger.Dismiss(tok)
	if ok {
		s.metrics.Undo("dismissed", 1)
	}
	return ok
}

// SweepUndo expires undo records older than the configured window and
// returns how many were dropped.
func (s *Session) SweepUndo() int {
	if s.opts.UndoWindow <= 0 {
		return 0
	}
	expired := s.ledger.Sweep(s.opts.UndoWindow)
	if len(expired) > 0 {
		s.metrics.Undo("expired", len(expired))
		s.bus.Emit(bus.LedgerExpired, len(expired))
	}
	return len(expired)
}

// MarkRead flags a notification as read. Unknown IDs are a no-op.
func (s *Session) MarkRead(ctx context.Context, id uint64) bool {
	s.mu.Lock()
	ok := s.ledger.MarkRead(id)
	if ok {
		s.refreshLocked()
	}
	s.mu.Unlock()
	if ok {
		s.persist(ctx)
	}
	return ok
}

// MarkAllRead flags every notification as read and returns how many
// changed.
func (s *Session) MarkAllRead(ctx context.Context) int {
	s.mu.Lock()
	n := s.ledger.MarkAllRead()
	if n > 0 {
		s.refreshLocked()
	}
	s.mu.Unlock()
	if n > 0 {
		s.persist(ctx)
	}
	return n
}

// refreshLocked re-derives the snapshot and dashboard from the ledger.
// Callers hold mu.
func (s *Session) refreshLocked() {
	if s.snapshot == nil {
		return
	}
	snap := s.snapshot.WithFollowing(s.ledger.Following())
	s.snapshot = &snap
	s.dashboard = buildDashboard(snap, s.ledger.Notifications(), s.opts.Now())
	s.observe(snap, s.dashboard)
}

// persist writes the mutated state through to the cache. Failures are
// logged by the cache and otherwise ignored.
func (s *Session) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	st, ok := s.stateLocked(s.opts.Now())
	s.mu.RUnlock()
	if !ok {
		return
	}
	items, err := st.items(false)
	if err != nil {
		s.logger.Error("encode mutated state", zap.Error(err))
		return
	}
	if err := s.cache.PutMany(ctx, items, st.at); err != nil {
		s.logger.Debug("mutation not persisted", zap.Error(err))
	}
}
