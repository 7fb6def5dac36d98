package relation

// Roster is an ordered list of users indexed by identifier. Removal leaves a
// tombstone that is compacted once tombstones outnumber live entries.
type Roster struct {
	slots []slot
	index map[string]int
	dead  int
}

type slot struct {
	user  UserRecord
	alive bool
}

// NewRoster creates a roster holding users in order. Duplicate identifiers
// keep the first position.
func NewRoster(users []UserRecord) *Roster {
	r := &Roster{index: make(map[string]int, len(users))}
	for _, u := range users {
		r.Append(u)
	}
	return r
}

// Len returns the number of live entries.
func (r *Roster) Len() int {
	return len(r.index)
}

// Append adds u at the end. It returns false if u.ID is already present.
func (r *Roster) Append(u UserRecord) bool {
	if _, ok := r.index[u.ID]; ok {
		return false
	}
	r.index[u.ID] = len(r.slots)
	r.slots = append(r.slots, slot{user: u, alive: true})
	return true
}

// Remove deletes id and returns the removed user.
func (r *Roster) Remove(id string) (UserRecord, bool) {
	i, ok := r.index[id]
	if !ok {
		return UserRecord{}, false
	}
	u := r.slots[i].user
	r.slots[i] = slot{}
	delete(r.index, id)
	r.dead++
	if r.dead > len(r.index) {
		r.compact()
	}
	return u, true
}

// Users returns the live entries in order.
func (r *Roster) Users() []UserRecord {
	out := make([]UserRecord, 0, len(r.index))
	for _, s := range r.slots {
		if s.alive {
			out = append(out, s.user)
		}
	}
	return out
}

func (r *Roster) compact() {
	live := make([]slot, 0, len(r.index))
	for _, s := range r.slots {
		if s.alive {
			r.index[s.user.ID] = len(live)
			live = append(live, s)
		}
	}
	r.slots = live
	r.dead = 0
}
