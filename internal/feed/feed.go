package feed

import "slices"

// Feed is the in-memory notification list, newest first.
type Feed struct {
	records []Record
}

// New creates a feed holding a copy of records in the given order.
func New(records []Record) *Feed {
	return &Feed{records: slices.Clone(records)}
}

// Records returns a copy of the list.
func (f *Feed) Records() []Record {
	return slices.Clone(f.records)
}

// Len returns the number of notifications.
func (f *Feed) Len() int {
	return len(f.records)
}

// MaxID returns the largest ID present, or 0.
func (f *Feed) MaxID() uint64 {
	var maxID uint64
	for _, r := range f.records {
		maxID = max(maxID, r.ID)
	}
	return maxID
}

// Find returns the record with id.
func (f *Feed) Find(id uint64) (Record, bool) {
	if i := f.indexOf(id); i >= 0 {
		return f.records[i], true
	}
	return Record{}, false
}

// MarkRead flags id as read. It returns false for unknown IDs.
func (f *Feed) MarkRead(id uint64) bool {
	i := f.indexOf(id)
	if i < 0 {
		return false
	}
	f.records[i].Read = true
	return true
}

// MarkAllRead flags every record as read and returns how many changed.
func (f *Feed) MarkAllRead() int {
	n := 0
	for i := range f.records {
		if !f.records[i].Read {
			f.records[i].Read = true
			n++
		}
	}
	return n
}

// UnreadCount returns the number of unread notifications.
func (f *Feed) UnreadCount() int {
	n := 0
	for _, r := range f.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// Remove deletes id and returns the removed record.
func (f *Feed) Remove(id uint64) (Record, bool) {
	i := f.indexOf(id)
	if i < 0 {
		return Record{}, false
	}
	r := f.records[i]
	f.records = slices.Delete(f.records, i, i+1)
	return r, true
}

// Prepend inserts r at the top of the list.
func (f *Feed) Prepend(r Record) {
	f.records = slices.Insert(f.records, 0, r)
}

func (f *Feed) indexOf(id uint64) int {
	return slices.IndexFunc(f.records, func(r Record) bool { return r.ID == id })
}
