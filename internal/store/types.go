package store

import "time"

// Entry is a stored cache value.
type Entry struct {
	Key       string
	Value     []byte
	WrittenAt time.Time
}

// SyncRun is one row of sync history.
type SyncRun struct {
	ID        string        `json:"id"`
	Profile   string        `json:"profile"`
	Result    string        `json:"result"` // ok, failed, rejected, cancelled
	Reason    string        `json:"reason,omitempty"`
	Followers int           `json:"followers"`
	Following int           `json:"following"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
