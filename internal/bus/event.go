package bus

import "time"

// Event kinds published by the session.
const (
	StatusChanged = "status.changed"
	SyncStarted   = "sync.started"
	SyncCompleted = "sync.completed"
	SyncFailed    = "sync.failed"
	SyncRejected  = "sync.rejected"
	SyncCancelled = "sync.cancelled"
	FeedUpdated   = "feed.updated"
	LedgerMutated = "ledger.mutated"
	LedgerUndone  = "ledger.undone"
	LedgerExpired = "ledger.expired"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
