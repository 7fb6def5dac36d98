package feed

// Merge combines a freshly built feed with the previous one.
//
// A regenerated record whose Key appeared before keeps the earlier ID and
// read flag. Previous records that were not regenerated are retained, except
// unfollows, which always mirror the current snapshot. Suppressed keys are
// dropped. The result is newest first and holds at most limit records when
// limit > 0.
func Merge(regenerated, previous []Record, suppressed map[Key]struct{}, limit int) []Record {
	prior := make(map[Key]Record, len(previous))
	for _, r := range previous {
		prior[r.Key()] = r
	}

	out := make([]Record, 0, len(regenerated)+len(previous))
	seen := make(map[Key]struct{}, len(regenerated))
	for _, r := range regenerated {
		k := r.Key()
		if _, ok := suppressed[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if p, ok := prior[k]; ok {
			r.ID = p.ID
			r.Read = p.Read
		}
		out = append(out, r)
	}
	for _, r := range previous {
		k := r.Key()
		if r.Type == Unfollow {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		if _, ok := suppressed[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
