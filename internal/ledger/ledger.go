// Package ledger tracks reversible mutations to the following list and the
// notification feed.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/relation"
)

// Token references a reversible mutation.
type Token string

// Placement says where an undone entity is reinserted.
type Placement int

const (
	// Append puts a restored following entry at the end of the list.
	Append Placement = iota
	// Prepend puts a restored notification at the top of the feed.
	Prepend
)

// UndoRecord is either a RemovedFollowing or a DeletedNotification.
type UndoRecord interface {
	Placement() Placement
	undoRecord()
}

// RemovedFollowing captures an account removed from the following list.
type RemovedFollowing struct {
	User relation.UserRecord
}

func (RemovedFollowing) Placement() Placement { return Append }
func (RemovedFollowing) undoRecord()          {}

// DeletedNotification captures a notification removed from the feed.
type DeletedNotification struct {
	Notification feed.Record
}

func (DeletedNotification) Placement() Placement { return Prepend }
func (DeletedNotification) undoRecord()          {}

type entry struct {
	record    UndoRecord
	createdAt time.Time
}

// Ledger owns the mutable following list and feed for one session. All
// methods are safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	following *relation.Roster
	feed      *feed.Feed
	pending   map[Token]entry
	now       func() time.Time
}

// New creates a ledger over the given state. A nil clock uses time.Now.
func New(following []relation.UserRecord, notifications []feed.Record, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		following: relation.NewRoster(following),
		feed:      feed.New(notifications),
		pending:   make(map[Token]entry),
		now:       now,
	}
}

// Reset replaces the tracked state and drops all pending undo records.
func (l *Ledger) Reset(following []relation.UserRecord, notifications []feed.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.following = relation.NewRoster(following)
	l.feed = feed.New(notifications)
	clear(l.pending)
}

// Following returns the current following list.
func (l *Ledger) Following() []relation.UserRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.following.Users()
}

// Notifications returns the current feed.
func (l *Ledger) Notifications() []feed.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feed.Records()
}

// UnreadCount returns the number of unread notifications.
func (l *Ledger) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feed.UnreadCount()
}

// RemoveFollowing removes id from the following list. ok is false when id is
// not followed.
func (l *Ledger) RemoveFollowing(id string) (tok Token, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.following.Remove(id)
	if !ok {
		return "", false
	}
	return l.push(RemovedFollowing{User: u}), true
}

// DeleteNotification removes id from the feed. ok is false for unknown or
// already deleted IDs.
func (l *Ledger) DeleteNotification(id uint64) (tok Token, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.feed.Remove(id)
	if !ok {
		return "", false
	}
	return l.push(DeletedNotification{Notification: r}), true
}

// MarkRead flags a notification as read.
func (l *Ledger) MarkRead(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feed.MarkRead(id)
}

// MarkAllRead flags every notification as read.
func (l *Ledger) MarkAllRead() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feed.MarkAllRead()
}

// Undo reverses the mutation behind tok. It returns the consumed record, or
// false when tok was already consumed, swept, or never issued. A following
// entry that has reappeared in the meantime is not duplicated.
func (l *Ledger) Undo(tok Token) (UndoRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.pending[tok]
	if !ok {
		return nil, false
	}
	delete(l.pending, tok)

	switch rec := e.record.(type) {
	case RemovedFollowing:
		if !l.following.Append(rec.User) {
			return rec, false
		}
	case DeletedNotification:
		if _, exists := l.feed.Find(rec.Notification.ID); exists {
			return rec, false
		}
		l.feed.Prepend(rec.Notification)
	}
	return e.record, true
}

// Peek returns the record behind tok without consuming it.
func (l *Ledger) Peek(tok Token) (UndoRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.pending[tok]
	return e.record, ok
}

// Dismiss drops tok without undoing it, e.g. when the undo prompt closes.
func (l *Ledger) Dismiss(tok Token) (UndoRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.pending[tok]
	delete(l.pending, tok)
	return e.record, ok
}

// Sweep drops undo records older than window and returns them.
func (l *Ledger) Sweep(window time.Duration) []UndoRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-window)
	var out []UndoRecord
	for tok, e := range l.pending {
		if e.createdAt.Before(cutoff) {
			out = append(out, e.record)
			delete(l.pending, tok)
		}
	}
	return out
}

// Pending returns the number of live undo tokens.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Ledger) push(rec UndoRecord) Token {
	tok := Token(uuid.NewString())
	l.pending[tok] = entry{record: rec, createdAt: l.now()}
	return tok
}
