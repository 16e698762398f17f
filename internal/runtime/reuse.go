package runtime

import "github.com/aretw0/detailtree/pkg/domain"

// ReuseMap indexes the rows of a previous build by PathKey so a rebuild can
// recycle them. Each row is handed out at most once.
type ReuseMap struct {
	rows    []*domain.Row
	byKey   map[string][]int
	taken   []bool
	pending int
}

// NewReuseMap indexes every reusable row. Placeholders without identity (dummies,
// error rows) are left out and will be recreated.
func NewReuseMap(rows []*domain.Row) *ReuseMap {
	m := &ReuseMap{byKey: make(map[string][]int)}
	for _, r := range rows {
		if r == nil || !r.Reusable() {
			continue
		}
		k := r.Key.String()
		m.byKey[k] = append(m.byKey[k], len(m.rows))
		m.rows = append(m.rows, r)
	}
	m.taken = make([]bool, len(m.rows))
	m.pending = len(m.rows)
	return m
}

// TakeIfPresent removes and returns the first row indexed under key, or nil.
// Rows sharing a key are returned in the order they were indexed.
func (m *ReuseMap) TakeIfPresent(key domain.PathKey) *domain.Row {
	if m == nil || key.IsZero() {
		return nil
	}
	k := key.String()
	idx := m.byKey[k]
	if len(idx) == 0 {
		return nil
	}
	i := idx[0]
	if len(idx) == 1 {
		delete(m.byKey, k)
	} else {
		m.byKey[k] = idx[1:]
	}
	m.taken[i] = true
	m.pending--
	return m.rows[i]
}

// Len returns the number of rows not yet taken.
func (m *ReuseMap) Len() int {
	if m == nil {
		return 0
	}
	return m.pending
}

// Drain removes and returns every row not taken, in indexing order.
func (m *ReuseMap) Drain() []*domain.Row {
	if m == nil {
		return nil
	}
	var out []*domain.Row
	for i, r := range m.rows {
		if !m.taken[i] {
			m.taken[i] = true
			out = append(out, r)
		}
	}
	m.byKey = map[string][]int{}
	m.pending = 0
	return out
}
