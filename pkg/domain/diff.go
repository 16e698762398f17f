package domain

// RowsDiff summarizes how a row list changed between two snapshots, by path key.
type RowsDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Kept    int      `json:"kept"`
}

// Empty reports whether nothing was added or removed.
func (d RowsDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffRows compares two row lists by path key. Rows without a key are treated as
// distinct from every other row and show up as added or removed.
func DiffRows(oldRows, newRows []*Row) RowsDiff {
	var diff RowsDiff
	before := make(map[string]int, len(oldRows))
	for _, r := range oldRows {
		if r.Key.IsZero() {
			continue
		}
		before[r.Key.String()]++
	}
	for _, r := range newRows {
		k := r.Key.String()
		if !r.Key.IsZero() && before[k] > 0 {
			before[k]--
			diff.Kept++
			continue
		}
		diff.Added = append(diff.Added, k)
	}
	for _, r := range oldRows {
		k := r.Key.String()
		if r.Key.IsZero() {
			diff.Removed = append(diff.Removed, k)
			continue
		}
		if before[k] > 0 {
			before[k]--
			diff.Removed = append(diff.Removed, k)
		}
	}
	return diff
}
