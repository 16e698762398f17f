package detailtree

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/detailtree/internal/runtime"
	"github.com/aretw0/detailtree/pkg/domain"
)

// rebuildSession marks a rebuild in progress. Rebuild requests made while it runs
// (from hooks or change notifications) coalesce into a single replay.
type rebuildSession struct {
	pending  bool
	preserve bool
}

// Rebuild shows the layout of root. When the root and layout are unchanged, rows of
// the previous build are recycled and keep their expansion state; otherwise the
// selection, scroll position and expansion state start over.
func (t *Tree) Rebuild(ctx context.Context, root domain.EntityID, layout string) error {
	same := root == t.root && layout == t.layout
	if !same {
		t.cur = -1
		t.top = 0
	}
	t.root = root
	t.layout = layout
	return t.refresh(ctx, same)
}

// Refresh rebuilds the current root. With preserveExpansion, rows that survive keep
// their expanded or collapsed state.
func (t *Tree) Refresh(ctx context.Context, preserveExpansion bool) error {
	return t.refresh(ctx, preserveExpansion)
}

func (t *Tree) refresh(ctx context.Context, preserve bool) error {
	if t.root.IsZero() {
		return domain.ErrNoRoot
	}
	if t.rebuild != nil {
		if t.rebuild.pending {
			t.rebuild.preserve = t.rebuild.preserve && preserve
		} else {
			t.rebuild.pending = true
			t.rebuild.preserve = preserve
		}
		return nil
	}

	t.rebuild = &rebuildSession{}
	defer func() { t.rebuild = nil }()

	var err error
	for {
		err = t.runBuild(ctx, preserve)
		if !t.rebuild.pending || ctx.Err() != nil {
			break
		}
		preserve = t.rebuild.preserve
		t.rebuild.pending = false
		t.logger.Debug("replaying coalesced rebuild", "root_id", int64(t.root))
	}
	return err
}

func (t *Tree) runBuild(ctx context.Context, preserve bool) error {
	var curKey, topKey domain.PathKey
	touched := t.touched
	t.touched = nil
	if t.cur >= 0 && t.cur < len(t.rows) {
		curKey = t.rows[t.cur].Key
		touched = append(touched, curKey.Entities())
	}
	if t.top >= 0 && t.top < len(t.rows) {
		topKey = t.rows[t.top].Key
	}

	res, err := t.engine.Build(ctx, t.root, t.layout, runtime.NewReuseMap(t.rows), runtime.BuildOptions{
		ShowHidden:        t.loadPrefs(ctx),
		PreserveExpansion: preserve,
		Touched:           touched,
	})
	if res == nil {
		t.rows = nil
		t.cur = -1
		t.top = 0
		return err
	}
	t.rows = res.Rows
	t.errs = res.Errors
	t.usedConditions = res.UsedConditions
	t.deps = res.Deps
	t.cur = t.restore(curKey, t.cur)
	t.top = max(t.restore(topKey, t.top), 0)
	t.engine.EmitInvalidated(ctx, 0, len(t.rows))

	if err != nil {
		return err
	}
	if rerr := res.Err(); rerr != nil {
		t.logger.Warn("rebuild finished with configuration errors", "root_id", int64(t.root), "errors", len(res.Errors))
		return rerr
	}
	return nil
}

// loadPrefs reads the view preferences and returns the show-hidden setting.
func (t *Tree) loadPrefs(ctx context.Context) bool {
	if t.prefs == nil {
		return t.showHidden
	}
	p, err := t.prefs.Load(ctx, t.view)
	if err != nil {
		if !errors.Is(err, domain.ErrPrefsNotFound) {
			t.logger.Warn("failed to load view preferences", "err", err)
		}
		return t.showHidden
	}
	t.labelWidth = p.LabelWidth
	return p.ShowHiddenLevel > 0
}

// restore finds the row that best stands for key after a rebuild: the row with that
// key, else the first row sharing the longest key prefix, else the previous index.
func (t *Tree) restore(key domain.PathKey, fallback int) int {
	if len(t.rows) == 0 {
		return -1
	}
	if key.IsZero() {
		return min(fallback, len(t.rows)-1)
	}
	best, bestLen := -1, 0
	for i, r := range t.rows {
		if r.Key.Equal(key) {
			return i
		}
		if n := r.Key.CommonPrefixLen(key); n > bestLen {
			best, bestLen = i, n
		}
	}
	if best >= 0 && bestLen > 1 {
		return best
	}
	return min(max(fallback, 0), len(t.rows)-1)
}

func (t *Tree) opts(ctx context.Context) runtime.BuildOptions {
	return runtime.BuildOptions{ShowHidden: t.loadPrefs(ctx), PreserveExpansion: true}
}

// absorb records what a partial build read.
func (t *Tree) absorb(res *runtime.Result) {
	t.usedConditions = t.usedConditions || res.UsedConditions
	t.deps.Merge(res.Deps)
}

func (t *Tree) row(i int) (*domain.Row, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("row %d of %d: %w", i, len(t.rows), domain.ErrRowOutOfRange)
	}
	return t.rows[i], nil
}

// replace swaps rows[from:to] for repl, keeping the current and top rows on the
// same content.
func (t *Tree) replace(from, to int, repl []*domain.Row) {
	delta := len(repl) - (to - from)
	next := make([]*domain.Row, 0, len(t.rows)+delta)
	next = append(next, t.rows[:from]...)
	next = append(next, repl...)
	next = append(next, t.rows[to:]...)
	t.rows = next

	shift := func(i int) int {
		switch {
		case i >= to:
			return i + delta
		case i >= from && i < to && from+len(repl) <= i:
			return max(from-1, 0)
		}
		return i
	}
	if t.cur >= 0 {
		t.cur = shift(t.cur)
	}
	t.top = shift(t.top)
}

// Expand shows the children of row i. Collapsed-empty rows ignore the request until
// a rebuild finds data for them.
func (t *Tree) Expand(ctx context.Context, i int) error {
	if t.rebuild != nil {
		return domain.ErrRebuildInProgress
	}
	row, err := t.row(i)
	if err != nil {
		return err
	}
	if row.Expansion != domain.Collapsed {
		_, err := runtime.Toggle(row.Expansion)
		return err
	}
	res, err := t.engine.BuildChildren(ctx, row, t.opts(ctx))
	if err != nil {
		return err
	}
	t.absorb(res)
	row.Expansion = domain.Expanded
	t.replace(i+1, i+1, res.Rows)
	t.engine.EmitInvalidated(ctx, i, len(res.Rows)+1)
	return res.Err()
}

// Collapse hides the children of row i: every following row with a deeper indent.
func (t *Tree) Collapse(ctx context.Context, i int) error {
	if t.rebuild != nil {
		return domain.ErrRebuildInProgress
	}
	row, err := t.row(i)
	if err != nil {
		return err
	}
	if row.Expansion != domain.Expanded {
		_, err := runtime.Toggle(row.Expansion)
		return err
	}
	end := domain.SubtreeEnd(t.rows, i)
	t.engine.Dispose(ctx, t.rows[i+1:end])
	row.Expansion = domain.Collapsed
	if t.cur > i && t.cur < end {
		t.cur = i
	}
	t.replace(i+1, end, nil)
	t.engine.EmitInvalidated(ctx, i, 1)
	return nil
}

// Toggle expands a collapsed row or collapses an expanded one.
func (t *Tree) Toggle(ctx context.Context, i int) error {
	row, err := t.row(i)
	if err != nil {
		return err
	}
	if row.Expansion == domain.Expanded {
		return t.Collapse(ctx, i)
	}
	return t.Expand(ctx, i)
}

// MakeReal replaces the placeholder at row i by the rows of its element. Other rows
// are left alone.
func (t *Tree) MakeReal(ctx context.Context, i int) error {
	if t.rebuild != nil {
		return domain.ErrRebuildInProgress
	}
	row, err := t.row(i)
	if err != nil {
		return err
	}
	if row.Variant != domain.VariantDummy {
		return nil
	}
	res, err := t.engine.Materialize(ctx, row, t.opts(ctx))
	if err != nil {
		return err
	}
	t.absorb(res)
	t.replace(i, i+1, res.Rows)
	t.engine.EmitInvalidated(ctx, i, len(res.Rows))
	return res.Err()
}

// MakeRangeReal materializes every placeholder in rows [from, to), typically the
// visible window. to grows with the rows the placeholders expand into.
func (t *Tree) MakeRangeReal(ctx context.Context, from, to int) error {
	from = max(from, 0)
	for i := from; i < to && i < len(t.rows); {
		if t.rows[i].Variant != domain.VariantDummy {
			i++
			continue
		}
		before := len(t.rows)
		if err := t.MakeReal(ctx, i); err != nil {
			return err
		}
		n := len(t.rows) - before + 1
		i += n
		to += n - 1
	}
	return nil
}

// CurrentRow returns the index and row of the current row, or -1 and nil.
func (t *Tree) CurrentRow() (int, *domain.Row) {
	if t.cur < 0 || t.cur >= len(t.rows) {
		return -1, nil
	}
	return t.cur, t.rows[t.cur]
}

// SetCurrentRow makes row i current; -1 clears the selection.
func (t *Tree) SetCurrentRow(i int) error {
	if i == -1 {
		t.cur = -1
		return nil
	}
	if _, err := t.row(i); err != nil {
		return err
	}
	t.cur = i
	return nil
}

// SelectByKey makes the row with key current and reports whether one was found.
func (t *Tree) SelectByKey(key domain.PathKey) bool {
	for i, r := range t.rows {
		if r.Key.Equal(key) {
			t.cur = i
			return true
		}
	}
	return false
}

// selectEntity makes current the first row showing field (any field when empty) of
// id in writing system ws (any when empty).
func (t *Tree) selectEntity(id domain.EntityID, field, ws string) bool {
	fallback := -1
	for i, r := range t.rows {
		if r.Entity != id || r.Variant == domain.VariantError {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if (field == "" || r.Field == field) && (ws == "" || r.WS == ws) {
			t.cur = i
			return true
		}
	}
	if fallback >= 0 {
		t.cur = fallback
		return true
	}
	return false
}

// Rows returns the current row list. The slice must not be modified.
func (t *Tree) Rows() []*domain.Row { return t.rows }

// Len returns the number of rows.
func (t *Tree) Len() int { return len(t.rows) }

// Row returns row i.
func (t *Tree) Row(i int) (*domain.Row, error) { return t.row(i) }

// Root returns the root entity and layout name.
func (t *Tree) Root() (domain.EntityID, string) { return t.root, t.layout }

// Errors returns the configuration errors of the last rebuild.
func (t *Tree) Errors() []error { return t.errs }

// Top returns the index of the first visible row.
func (t *Tree) Top() int { return t.top }

// SetTop scrolls so that row i is the first visible one.
func (t *Tree) SetTop(i int) error {
	if _, err := t.row(i); err != nil {
		return err
	}
	t.top = i
	return nil
}

// LabelWidth returns the label column width from the view preferences (0 if unset).
func (t *Tree) LabelWidth() int { return t.labelWidth }
