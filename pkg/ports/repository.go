package ports

import (
	"context"

	"github.com/aretw0/detailtree/pkg/domain"
)

// Metadata describes classes and their field signatures.
type Metadata interface {
	// Class returns the definition of a class.
	// Returns domain.ErrClassNotFound when the class is unknown.
	Class(class domain.ClassID) (domain.ClassDef, error)

	// Field returns a field of a class, searching superclasses.
	// Returns domain.ErrFieldNotFound when no class in the chain declares it.
	Field(class domain.ClassID, name string) (domain.FieldDef, error)

	// Fields returns every field applicable to the class, inherited ones first.
	Fields(class domain.ClassID) ([]domain.FieldDef, error)
}

// Repository gives read access to the entity graph.
//
// Getters on an id that is no longer valid return domain.ErrEntityNotFound.
// Empty values are not errors: an unset string is "", an unset reference is NoEntity.
type Repository interface {
	Metadata() Metadata

	// Valid reports whether id refers to a live entity.
	Valid(id domain.EntityID) bool
	ClassOf(id domain.EntityID) (domain.ClassID, error)
	// Owner returns the owning entity and the field it is owned through.
	Owner(id domain.EntityID) (domain.EntityID, string, error)

	String(id domain.EntityID, field string) (string, error)
	MultiString(id domain.EntityID, field, ws string) (string, error)
	// Value returns integer, boolean and date field values.
	Value(id domain.EntityID, field string) (any, error)
	Atomic(id domain.EntityID, field string) (domain.EntityID, error)
	VectorSize(id domain.EntityID, field string) (int, error)
	VectorItem(id domain.EntityID, field string, index int) (domain.EntityID, error)
	Vector(id domain.EntityID, field string) ([]domain.EntityID, error)

	// Begin opens a unit of work. Exactly one of Commit or Rollback must be called.
	Begin(ctx context.Context, label string) (UnitOfWork, error)
}

// UnitOfWork is a transaction scope over the repository.
// Changes become visible to readers as they are made and are undone by Rollback.
type UnitOfWork interface {
	// Create makes a new entity of class and attaches it to owner.field. Index is the
	// insertion position for sequences; a negative index appends. It is ignored for
	// atomic and collection fields.
	Create(class domain.ClassID, owner domain.EntityID, field string, index int) (domain.EntityID, error)
	SetString(id domain.EntityID, field, value string) error
	SetMultiString(id domain.EntityID, field, ws, value string) error
	SetValue(id domain.EntityID, field string, value any) error
	SetAtomic(id domain.EntityID, field string, target domain.EntityID) error
	// Delete removes the entity, everything it owns, and references to it.
	Delete(id domain.EntityID) error

	Commit(ctx context.Context) error
	Rollback() error
}

// ChangeNotifier delivers change notifications after each commit.
type ChangeNotifier interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func(domain.Change)) (unsubscribe func())
}
