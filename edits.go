package detailtree

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/detailtree/internal/runtime"
	"github.com/aretw0/detailtree/pkg/domain"
)

// SuppressRefresh runs fn with change-driven rebuilds held back. Notifications that
// arrive meanwhile are recorded and exactly one rebuild runs when the outermost
// scope ends.
func (t *Tree) SuppressRefresh(ctx context.Context, fn func() error) error {
	err := func() error {
		t.suppress++
		defer func() { t.suppress-- }()
		return fn()
	}()
	if t.suppress == 0 && t.suppressed {
		t.suppressed = false
		if rerr := t.refresh(ctx, true); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	return err
}

// HandleChange reacts to a committed data change. A plain value change shown only by
// always-visible rows is applied to those rows in place; anything else rebuilds.
func (t *Tree) HandleChange(ctx context.Context, c domain.Change) error {
	if t.suppress > 0 {
		t.suppressed = true
		return nil
	}
	if t.root.IsZero() {
		return nil
	}
	if t.rebuild == nil && t.refreshInPlace(ctx, c) {
		return nil
	}
	return t.refresh(ctx, true)
}

func (t *Tree) refreshInPlace(ctx context.Context, c domain.Change) bool {
	if c.RangeChanged || t.usedConditions || c.Field == "" {
		return false
	}
	if t.deps.IfData[runtime.FieldRef{Entity: c.Entity, Field: c.Field}] {
		// An "ifdata" node over the field may appear or disappear.
		return false
	}
	class, err := t.repo.ClassOf(c.Entity)
	if err != nil {
		return false
	}
	f, err := t.repo.Metadata().Field(class, c.Field)
	if err != nil || !f.Kind.IsValue() {
		return false
	}
	var hits []int
	for i, r := range t.rows {
		if r.Entity != c.Entity || r.Field != c.Field {
			continue
		}
		if r.Variant != domain.VariantReal || r.Node == nil ||
			r.Node.EffectiveVisibility() != domain.VisibilityAlways || len(r.Node.Children) > 0 {
			return false
		}
		hits = append(hits, i)
	}
	if len(hits) == 0 {
		return false
	}
	for _, i := range hits {
		if err := t.engine.RefreshRow(t.rows[i]); err != nil {
			return false
		}
		t.engine.EmitInvalidated(ctx, i, 1)
	}
	t.logger.Debug("rows refreshed in place", "entity_id", int64(c.Entity), "field", c.Field, "rows", len(hits))
	return true
}

// InsertChild creates an object of class in the owning field of the current row's
// object, or of the nearest owner that has the field, and makes its first row
// current. In a sequence the object goes right after the current element.
//
// When the field is shown by a single template node that nothing else depends on,
// the new object's rows are spliced in without a rebuild.
func (t *Tree) InsertChild(ctx context.Context, field string, class domain.ClassID) (domain.EntityID, error) {
	if t.root.IsZero() {
		return domain.NoEntity, domain.ErrNoRoot
	}
	owner, path, err := t.insertionOwner(field)
	if err != nil {
		return domain.NoEntity, err
	}
	index := -1
	var sibling domain.PathKey
	if _, row := t.CurrentRow(); row != nil && row.Entity != owner {
		if o, of, err := t.repo.Owner(row.Entity); err == nil && o == owner && of == field {
			items, err := t.repo.Vector(owner, field)
			if err == nil {
				for i, it := range items {
					if it == row.Entity {
						index = i + 1
					}
				}
			}
			sibling = elementKey(row.Key, row.Entity)
		}
	}

	var created domain.EntityID
	err = t.SuppressRefresh(ctx, func() error {
		uow, err := t.repo.Begin(ctx, "insert "+string(class))
		if err != nil {
			return err
		}
		id, err := uow.Create(class, owner, field, index)
		if err != nil {
			if rbErr := uow.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return err
		}
		pending := t.suppressed
		if err := uow.Commit(ctx); err != nil {
			return err
		}
		created = id
		t.touched = append(t.touched, append(path, id))
		t.suppressed = pending || !t.insertInPlace(ctx, owner, field, id, sibling)
		return nil
	})
	if created.IsZero() {
		return domain.NoEntity, fmt.Errorf("insert %s into %s: %w", class, field, err)
	}
	t.selectEntity(created, "", "")
	return created, err
}

// insertInPlace splices the rows of created, just added to owner.field, into the
// row list: after the rows of the sibling element when the field is a shown
// sequence, or in place of the field's ghost row. It reports false, leaving the rows
// alone, when other rows could depend on the field or the sequence is paged.
func (t *Tree) insertInPlace(ctx context.Context, owner domain.EntityID, field string, created domain.EntityID, sibling domain.PathKey) bool {
	ref := runtime.FieldRef{Entity: owner, Field: field}
	if t.rebuild != nil || t.usedConditions || t.deps.IfData[ref] || t.deps.Uses[ref] != 1 {
		return false
	}
	if f, err := t.fieldOf(owner, field); err != nil || (f.Kind.IsVector() && t.pagedAfterInsert(owner, field)) {
		return false
	}

	var (
		node     *domain.TemplateNode
		key      domain.PathKey
		indent   int
		from, to int
	)
	if !sibling.IsZero() {
		site, ok := t.deps.Sequences[sibling.Parent().String()]
		if !ok || site.Owner != owner || site.Node.Field != field {
			return false
		}
		first := -1
		for i, r := range t.rows {
			if r.Key.HasPrefix(sibling) {
				first = i
				break
			}
		}
		if first < 0 {
			return false
		}
		end := first
		for end < len(t.rows) && t.rows[end].Key.HasPrefix(sibling) {
			end++
		}
		node, key, indent, from, to = site.Node, site.Key.Append(domain.EntityElem(created)), site.Indent, end, end
	} else {
		ghost := -1
		for i, r := range t.rows {
			if r.Variant == domain.VariantGhost && r.Ghost != nil && r.Ghost.Owner == owner && r.Ghost.Field == field {
				ghost = i
				break
			}
		}
		if ghost < 0 {
			return false
		}
		g := t.rows[ghost]
		node, key, indent, from, to = g.Node, g.Key.Append(domain.EntityElem(created)), g.Indent, ghost, ghost+1
	}

	res, err := t.engine.BuildElement(ctx, node, created, key, indent, t.opts(ctx))
	if err != nil || res.Err() != nil {
		if res != nil {
			t.engine.Dispose(ctx, res.Rows)
		}
		return false
	}
	t.absorb(res)
	t.engine.Dispose(ctx, t.rows[from:to])
	t.replace(from, to, res.Rows)
	t.engine.EmitInvalidated(ctx, from, len(res.Rows))
	t.logger.Debug("inserted rows in place", "entity_id", int64(created), "field", field, "rows", len(res.Rows))
	return true
}

func (t *Tree) fieldOf(id domain.EntityID, field string) (domain.FieldDef, error) {
	class, err := t.repo.ClassOf(id)
	if err != nil {
		return domain.FieldDef{}, err
	}
	return t.repo.Metadata().Field(class, field)
}

func (t *Tree) pagedAfterInsert(owner domain.EntityID, field string) bool {
	size, err := t.repo.VectorSize(owner, field)
	return err != nil || t.engine.Paged(size)
}

// elementKey returns the leading part of key that ends at the element step of id.
func elementKey(key domain.PathKey, id domain.EntityID) domain.PathKey {
	for i := key.Len() - 1; i > 0; i-- {
		if s := key.At(i); s.IsEntity() && s.Entity() == id {
			return key.Prefix(i + 1)
		}
	}
	return domain.PathKey{}
}

// insertionOwner walks from the current row's object up the ownership chain to the
// first object whose class declares field as an owning field. It also returns the
// entity-id path from the root to that object.
func (t *Tree) insertionOwner(field string) (domain.EntityID, []domain.EntityID, error) {
	path := []domain.EntityID{t.root}
	if _, row := t.CurrentRow(); row != nil {
		if ids := row.Key.Entities(); len(ids) > 0 {
			path = ids
		}
		if row.Variant == domain.VariantReal && !row.Entity.IsZero() && path[len(path)-1] != row.Entity {
			path = append(path, row.Entity)
		}
	}
	for len(path) > 0 {
		id := path[len(path)-1]
		class, err := t.repo.ClassOf(id)
		if err != nil {
			return domain.NoEntity, nil, err
		}
		f, err := t.repo.Metadata().Field(class, field)
		if err == nil {
			if !f.Kind.IsOwning() {
				return domain.NoEntity, nil, fmt.Errorf("%s.%s is a %s field: cannot insert into it", class, field, f.Kind)
			}
			return id, append([]domain.EntityID(nil), path...), nil
		}
		path = path[:len(path)-1]
	}
	return domain.NoEntity, nil, fmt.Errorf("no object on the current path has field %s: %w", field, domain.ErrFieldNotFound)
}

// CommitGhost writes the first value into the ghost row i, creating the object it
// stands for, and moves the selection to the row showing the written field.
// Empty text leaves the ghost in place.
func (t *Tree) CommitGhost(ctx context.Context, i int, text string) (domain.EntityID, error) {
	row, err := t.row(i)
	if err != nil {
		return domain.NoEntity, err
	}
	if row.Variant != domain.VariantGhost || row.Ghost == nil {
		return domain.NoEntity, domain.ErrNotGhost
	}
	desc := *row.Ghost
	path := row.Key.Entities()

	var created domain.EntityID
	err = t.SuppressRefresh(ctx, func() error {
		id, err := t.engine.CommitGhost(ctx, row, text)
		if err != nil || id.IsZero() {
			return err
		}
		created = id
		t.touched = append(t.touched, append(path, id))
		t.suppressed = true
		return nil
	})
	if !created.IsZero() {
		t.selectEntity(created, desc.TargetField, desc.WS)
	}
	return created, err
}

// Edit writes text into the field shown by row i, parsed for the field's kind. On a
// ghost row it materializes the ghost. Without a change notifier the tree applies
// the change itself.
func (t *Tree) Edit(ctx context.Context, i int, text string) error {
	row, err := t.row(i)
	if err != nil {
		return err
	}
	if row.Variant == domain.VariantGhost {
		_, err := t.CommitGhost(ctx, i, text)
		return err
	}
	if row.Variant != domain.VariantReal || row.Field == "" {
		return fmt.Errorf("row %d is not editable", i)
	}
	class, err := t.repo.ClassOf(row.Entity)
	if err != nil {
		return err
	}
	f, err := t.repo.Metadata().Field(class, row.Field)
	if err != nil {
		return err
	}

	uow, err := t.repo.Begin(ctx, "edit "+row.Field)
	if err != nil {
		return err
	}
	if err := writeValue(uow, row.Entity, f, row.WS, text); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return fmt.Errorf("edit %s.%s: %w", class, row.Field, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return err
	}
	if t.notifier == nil {
		return t.HandleChange(ctx, domain.Change{Entity: row.Entity, Field: row.Field})
	}
	return nil
}
