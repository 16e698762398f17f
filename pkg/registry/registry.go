package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
)

// ErrUnknownEditor is returned when no factory is registered for an editor kind.
var ErrUnknownEditor = errors.New("unknown editor kind")

// EditorFactory creates the control bound into a row.
// It receives the row being built and returns an opaque control.
type EditorFactory func(row *domain.Row) (domain.Control, error)

// Editors maps editor kinds to control factories.
type Editors struct {
	mu        sync.RWMutex
	factories map[string]EditorFactory
}

// NewEditors creates a new empty editor registry.
func NewEditors() *Editors {
	return &Editors{
		factories: make(map[string]EditorFactory),
	}
}

// Register adds an editor kind to the registry.
// If the kind exists, it is overwritten.
func (r *Editors) Register(kind string, fn EditorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = fn
}

// Create looks up an editor kind and builds a control for the row.
// Returns ErrUnknownEditor if the kind is not registered.
func (r *Editors) Create(kind string, row *domain.Row) (domain.Control, error) {
	r.mu.RLock()
	fn, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEditor, kind)
	}
	return fn(row)
}

// Kinds returns the registered editor kinds, sorted.
func (r *Editors) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Initializer runs inside a ghost materialization transaction, after the target
// entity has been created, attached and given its first value.
type Initializer func(ctx context.Context, uow ports.UnitOfWork, created domain.EntityID) error

// Initializers maps names to post-creation initializers.
type Initializers struct {
	mu    sync.RWMutex
	inits map[string]Initializer
}

// NewInitializers creates a new empty initializer registry.
func NewInitializers() *Initializers {
	return &Initializers{
		inits: make(map[string]Initializer),
	}
}

// Register adds a named initializer, overwriting any previous one.
func (r *Initializers) Register(name string, fn Initializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits[name] = fn
}

// Lookup returns the named initializer.
func (r *Initializers) Lookup(name string) (Initializer, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.inits[name]
	return fn, ok
}
