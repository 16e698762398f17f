package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/schema"
)

var errTxDone = errors.New("unit of work already finished")

type object struct {
	id         domain.EntityID
	class      domain.ClassID
	owner      domain.EntityID
	ownerField string
	values     map[string]any
}

func (o *object) clone() *object {
	c := *o
	c.values = make(map[string]any, len(o.values))
	for k, v := range o.values {
		switch tv := v.(type) {
		case []domain.EntityID:
			c.values[k] = append([]domain.EntityID(nil), tv...)
		case map[string]string:
			m := make(map[string]string, len(tv))
			for ws, s := range tv {
				m[ws] = s
			}
			c.values[k] = m
		default:
			c.values[k] = v
		}
	}
	return &c
}

func (o *object) vector(field string) []domain.EntityID {
	v, _ := o.values[field].([]domain.EntityID)
	return v
}

func (o *object) atomic(field string) domain.EntityID {
	v, _ := o.values[field].(domain.EntityID)
	return v
}

// Repository implements ports.Repository and ports.ChangeNotifier in memory.
// Safe for concurrent use; units of work apply their changes immediately and
// notify subscribers on Commit.
type Repository struct {
	meta *Metadata

	mu      sync.RWMutex
	objects map[domain.EntityID]*object
	roots   []domain.EntityID
	nextID  domain.EntityID

	subMu   sync.Mutex
	subs    map[int]func(domain.Change)
	nextSub int

	validators schema.Schema
}

// NewRepository creates an empty repository over the given metadata.
func NewRepository(meta *Metadata) *Repository {
	return &Repository{
		meta:    meta,
		objects: make(map[domain.EntityID]*object),
		nextID:  1,
		subs:    make(map[int]func(domain.Change)),
	}
}

// Metadata returns the class metadata.
func (r *Repository) Metadata() ports.Metadata { return r.meta }

// Validators returns the named validators declared by the fixture, if any.
func (r *Repository) Validators() schema.Schema { return r.validators }

// Meta returns the concrete metadata, e.g. to declare custom fields.
func (r *Repository) Meta() *Metadata { return r.meta }

// NewRoot creates an unowned entity.
func (r *Repository) NewRoot(class domain.ClassID) (domain.EntityID, error) {
	return r.newRoot(domain.NoEntity, class)
}

func (r *Repository) newRoot(id domain.EntityID, class domain.ClassID) (domain.EntityID, error) {
	def, err := r.meta.Class(class)
	if err != nil {
		return domain.NoEntity, err
	}
	if def.Abstract {
		return domain.NoEntity, fmt.Errorf("cannot instantiate abstract class %s", class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err = r.allocate(id)
	if err != nil {
		return domain.NoEntity, err
	}
	r.objects[id] = &object{id: id, class: class, values: map[string]any{}}
	r.roots = append(r.roots, id)
	return id, nil
}

// allocate must be called with the write lock held.
func (r *Repository) allocate(id domain.EntityID) (domain.EntityID, error) {
	if id.IsZero() {
		id = r.nextID
	} else if _, exists := r.objects[id]; exists {
		return domain.NoEntity, fmt.Errorf("entity %s already exists", id)
	}
	if id >= r.nextID {
		r.nextID = id + 1
	}
	return id, nil
}

// Roots lists the live unowned entities in creation order.
func (r *Repository) Roots() []domain.EntityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.EntityID
	for _, id := range r.roots {
		if _, ok := r.objects[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of live entities.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Valid reports whether id refers to a live entity.
func (r *Repository) Valid(id domain.EntityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.objects[id]
	return ok
}

// ClassOf returns the class of an entity.
func (r *Repository) ClassOf(id domain.EntityID) (domain.ClassID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return o.class, nil
}

// Owner returns the owning entity and the field it is owned through.
func (r *Repository) Owner(id domain.EntityID) (domain.EntityID, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, err := r.lookup(id)
	if err != nil {
		return domain.NoEntity, "", err
	}
	return o.owner, o.ownerField, nil
}

func (r *Repository) lookup(id domain.EntityID) (*object, error) {
	o, ok := r.objects[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
	}
	return o, nil
}

func (r *Repository) field(o *object, name string, accept func(domain.FieldKind) bool) (domain.FieldDef, error) {
	f, err := r.meta.Field(o.class, name)
	if err != nil {
		return f, err
	}
	if !accept(f.Kind) {
		return f, fmt.Errorf("%s.%s is a %s field", o.class, name, f.Kind)
	}
	return f, nil
}

func isKind(kinds ...domain.FieldKind) func(domain.FieldKind) bool {
	return func(k domain.FieldKind) bool {
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

func (r *Repository) read(id domain.EntityID, field string, accept func(domain.FieldKind) bool) (*object, domain.FieldDef, error) {
	o, err := r.lookup(id)
	if err != nil {
		return nil, domain.FieldDef{}, err
	}
	f, err := r.field(o, field, accept)
	return o, f, err
}

// String returns the value of a string field.
func (r *Repository) String(id domain.EntityID, field string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, isKind(domain.KindString))
	if err != nil {
		return "", err
	}
	s, _ := o.values[field].(string)
	return s, nil
}

// MultiString returns one alternative of a multistring field. An empty ws selects the
// first non-empty alternative in writing-system order.
func (r *Repository) MultiString(id domain.EntityID, field, ws string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, isKind(domain.KindMultiString))
	if err != nil {
		return "", err
	}
	alts, _ := o.values[field].(map[string]string)
	if ws != "" {
		return alts[ws], nil
	}
	keys := make([]string, 0, len(alts))
	for k := range alts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if alts[k] != "" {
			return alts[k], nil
		}
	}
	return "", nil
}

// Value returns integer (int64), boolean and date (time.Time) field values.
func (r *Repository) Value(id domain.EntityID, field string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, f, err := r.read(id, field, isKind(domain.KindInteger, domain.KindBoolean, domain.KindDate))
	if err != nil {
		return nil, err
	}
	if v, ok := o.values[field]; ok {
		return v, nil
	}
	switch f.Kind {
	case domain.KindInteger:
		return int64(0), nil
	case domain.KindBoolean:
		return false, nil
	default:
		return time.Time{}, nil
	}
}

// Atomic returns the target of an atomic object field.
func (r *Repository) Atomic(id domain.EntityID, field string) (domain.EntityID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, domain.FieldKind.IsAtomic)
	if err != nil {
		return domain.NoEntity, err
	}
	return o.atomic(field), nil
}

// VectorSize returns the number of items in a collection or sequence field.
func (r *Repository) VectorSize(id domain.EntityID, field string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, domain.FieldKind.IsVector)
	if err != nil {
		return 0, err
	}
	return len(o.vector(field)), nil
}

// VectorItem returns one item of a collection or sequence field.
func (r *Repository) VectorItem(id domain.EntityID, field string, index int) (domain.EntityID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, domain.FieldKind.IsVector)
	if err != nil {
		return domain.NoEntity, err
	}
	v := o.vector(field)
	if index < 0 || index >= len(v) {
		return domain.NoEntity, fmt.Errorf("%s.%s[%d]: index out of range (len %d)", id, field, index, len(v))
	}
	return v[index], nil
}

// Vector returns a copy of the items of a collection or sequence field.
func (r *Repository) Vector(id domain.EntityID, field string) ([]domain.EntityID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, _, err := r.read(id, field, domain.FieldKind.IsVector)
	if err != nil {
		return nil, err
	}
	return append([]domain.EntityID(nil), o.vector(field)...), nil
}

// Subscribe registers fn for change notifications.
func (r *Repository) Subscribe(fn func(domain.Change)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Repository) notify(changes []domain.Change) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(domain.Change), len(ids))
	for i, id := range ids {
		fns[i] = r.subs[id]
	}
	r.subMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Begin opens a unit of work.
func (r *Repository) Begin(ctx context.Context, label string) (ports.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.begin(label), nil
}

func (r *Repository) begin(label string) *unitOfWork {
	return &unitOfWork{repo: r, label: label, before: make(map[domain.EntityID]*object)}
}

// Update runs fn in a unit of work, committing on success and rolling back on error.
func (r *Repository) Update(ctx context.Context, label string, fn func(ports.UnitOfWork) error) error {
	uow, err := r.Begin(ctx, label)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return uow.Commit(ctx)
}

type unitOfWork struct {
	repo  *Repository
	label string
	// before holds the pre-transaction copy of every touched entity; nil marks
	// entities created by this unit of work.
	before  map[domain.EntityID]*object
	changes []domain.Change
	done    bool
}

func (u *unitOfWork) touch(o *object) {
	if _, seen := u.before[o.id]; !seen {
		u.before[o.id] = o.clone()
	}
}

func (u *unitOfWork) record(c domain.Change) {
	for i, prev := range u.changes {
		if prev.Entity == c.Entity && prev.Field == c.Field {
			u.changes[i].RangeChanged = prev.RangeChanged || c.RangeChanged
			return
		}
	}
	u.changes = append(u.changes, c)
}

func (u *unitOfWork) lock() (func(), error) {
	if u.done {
		return nil, errTxDone
	}
	u.repo.mu.Lock()
	return u.repo.mu.Unlock, nil
}

func (u *unitOfWork) Create(class domain.ClassID, owner domain.EntityID, field string, index int) (domain.EntityID, error) {
	return u.create(domain.NoEntity, class, owner, field, index)
}

func (u *unitOfWork) create(id domain.EntityID, class domain.ClassID, owner domain.EntityID, field string, index int) (domain.EntityID, error) {
	unlock, err := u.lock()
	if err != nil {
		return domain.NoEntity, err
	}
	defer unlock()
	r := u.repo

	o, f, err := r.read(owner, field, domain.FieldKind.IsOwning)
	if err != nil {
		return domain.NoEntity, err
	}
	if class == "" {
		class = f.Target
	}
	def, err := r.meta.Class(class)
	if err != nil {
		return domain.NoEntity, err
	}
	if def.Abstract {
		return domain.NoEntity, fmt.Errorf("cannot instantiate abstract class %s", class)
	}
	if !r.meta.IsA(class, f.Target) {
		return domain.NoEntity, fmt.Errorf("%s is not a %s (field %s.%s)", class, f.Target, o.class, field)
	}

	id, err = r.allocate(id)
	if err != nil {
		return domain.NoEntity, err
	}

	u.touch(o)
	if f.Kind.IsAtomic() {
		if prev := o.atomic(field); !prev.IsZero() {
			if err := u.deleteLocked(prev); err != nil {
				return domain.NoEntity, err
			}
		}
		o.values[field] = id
	} else {
		v := o.vector(field)
		if !f.Kind.IsSequence() || index < 0 || index > len(v) {
			index = len(v)
		}
		next := make([]domain.EntityID, 0, len(v)+1)
		next = append(next, v[:index]...)
		next = append(next, id)
		next = append(next, v[index:]...)
		o.values[field] = next
	}

	u.before[id] = nil
	r.objects[id] = &object{id: id, class: class, owner: owner, ownerField: field, values: map[string]any{}}
	u.record(domain.Change{Entity: owner, Field: field, RangeChanged: f.Kind.IsVector()})
	return id, nil
}

func (u *unitOfWork) set(id domain.EntityID, field string, accept func(domain.FieldKind) bool, apply func(*object, domain.FieldDef) error) error {
	unlock, err := u.lock()
	if err != nil {
		return err
	}
	defer unlock()
	o, f, err := u.repo.read(id, field, accept)
	if err != nil {
		return err
	}
	u.touch(o)
	if err := apply(o, f); err != nil {
		return err
	}
	u.record(domain.Change{Entity: id, Field: field})
	return nil
}

func (u *unitOfWork) SetString(id domain.EntityID, field, value string) error {
	return u.set(id, field, isKind(domain.KindString), func(o *object, _ domain.FieldDef) error {
		o.values[field] = value
		return nil
	})
}

func (u *unitOfWork) SetMultiString(id domain.EntityID, field, ws, value string) error {
	if ws == "" {
		return fmt.Errorf("%s.%s: writing system required", id, field)
	}
	return u.set(id, field, isKind(domain.KindMultiString), func(o *object, _ domain.FieldDef) error {
		alts, _ := o.values[field].(map[string]string)
		if alts == nil {
			alts = map[string]string{}
			o.values[field] = alts
		}
		alts[ws] = value
		return nil
	})
}

func (u *unitOfWork) SetValue(id domain.EntityID, field string, value any) error {
	accept := isKind(domain.KindInteger, domain.KindBoolean, domain.KindDate)
	return u.set(id, field, accept, func(o *object, f domain.FieldDef) error {
		v, err := normalizeValue(f.Kind, value)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", id, field, err)
		}
		o.values[field] = v
		return nil
	})
}

func (u *unitOfWork) SetAtomic(id domain.EntityID, field string, target domain.EntityID) error {
	return u.set(id, field, isKind(domain.KindReferenceAtomic), func(o *object, f domain.FieldDef) error {
		if err := u.checkTarget(target, f); err != nil {
			return err
		}
		o.values[field] = target
		return nil
	})
}

// SetReferences replaces the items of a reference collection or sequence.
func (u *unitOfWork) SetReferences(id domain.EntityID, field string, targets []domain.EntityID) error {
	accept := isKind(domain.KindReferenceCollection, domain.KindReferenceSequence)
	unlock, err := u.lock()
	if err != nil {
		return err
	}
	defer unlock()
	o, f, err := u.repo.read(id, field, accept)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := u.checkTarget(t, f); err != nil {
			return err
		}
	}
	u.touch(o)
	o.values[field] = append([]domain.EntityID(nil), targets...)
	u.record(domain.Change{Entity: id, Field: field, RangeChanged: true})
	return nil
}

func (u *unitOfWork) checkTarget(target domain.EntityID, f domain.FieldDef) error {
	if target.IsZero() {
		return nil
	}
	t, err := u.repo.lookup(target)
	if err != nil {
		return err
	}
	if !u.repo.meta.IsA(t.class, f.Target) {
		return fmt.Errorf("%s is a %s, field %s wants %s", target, t.class, f.Name, f.Target)
	}
	return nil
}

func (u *unitOfWork) Delete(id domain.EntityID) error {
	unlock, err := u.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return u.deleteLocked(id)
}

func (u *unitOfWork) deleteLocked(id domain.EntityID) error {
	r := u.repo
	o, err := r.lookup(id)
	if err != nil {
		return err
	}
	fields, err := r.meta.Fields(o.class)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if !f.Kind.IsOwning() {
			continue
		}
		var owned []domain.EntityID
		if f.Kind.IsAtomic() {
			if c := o.atomic(f.Name); !c.IsZero() {
				owned = []domain.EntityID{c}
			}
		} else {
			owned = append(owned, o.vector(f.Name)...)
		}
		for _, c := range owned {
			if _, alive := r.objects[c]; alive {
				if err := u.deleteLocked(c); err != nil {
					return err
				}
			}
		}
	}

	if owner, ok := r.objects[o.owner]; ok {
		u.touch(owner)
		u.removeRef(owner, o.ownerField, id)
	}
	for _, other := range r.objects {
		if other.id == id {
			continue
		}
		ofields, err := r.meta.Fields(other.class)
		if err != nil {
			return err
		}
		for _, f := range ofields {
			if f.Kind.IsOwning() || f.Kind.IsValue() || !holds(other, f, id) {
				continue
			}
			u.touch(other)
			u.removeRef(other, f.Name, id)
		}
	}

	u.touch(o)
	delete(r.objects, id)
	u.record(domain.Change{Entity: id})
	return nil
}

func holds(o *object, f domain.FieldDef, id domain.EntityID) bool {
	if f.Kind.IsAtomic() {
		return o.atomic(f.Name) == id
	}
	for _, v := range o.vector(f.Name) {
		if v == id {
			return true
		}
	}
	return false
}

func (u *unitOfWork) removeRef(o *object, field string, id domain.EntityID) {
	switch v := o.values[field].(type) {
	case domain.EntityID:
		if v == id {
			o.values[field] = domain.NoEntity
			u.record(domain.Change{Entity: o.id, Field: field})
		}
	case []domain.EntityID:
		next := v[:0:0]
		for _, item := range v {
			if item != id {
				next = append(next, item)
			}
		}
		o.values[field] = next
		u.record(domain.Change{Entity: o.id, Field: field, RangeChanged: true})
	}
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	u.done = true
	u.repo.notify(u.changes)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if u.done {
		return errTxDone
	}
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	for id, orig := range u.before {
		if orig == nil {
			delete(u.repo.objects, id)
			continue
		}
		u.repo.objects[id] = orig
	}
	u.done = true
	return nil
}

const dateLayout = "2006-01-02"

func normalizeValue(kind domain.FieldKind, v any) (any, error) {
	switch kind {
	case domain.KindInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("%v is not a whole number", n)
			}
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, err
			}
			return i, nil
		}
	case domain.KindBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case domain.KindDate:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			if t, err := time.Parse(time.RFC3339, d); err == nil {
				return t, nil
			}
			return time.Parse(dateLayout, d)
		}
	}
	return nil, fmt.Errorf("cannot store %T in a %s field", v, kind)
}
