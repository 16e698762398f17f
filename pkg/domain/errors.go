package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLayoutNotFound is returned when no layout exists for a class or any of its superclasses.
	ErrLayoutNotFound = errors.New("layout not found")
	// ErrPartNotFound is returned when a part reference cannot be resolved.
	ErrPartNotFound = errors.New("part not found")
	// ErrEntityNotFound is returned when an entity id is not present in the repository.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrClassNotFound is returned when a class is not described by the metadata.
	ErrClassNotFound = errors.New("class not found")
	// ErrFieldNotFound is returned when a field is not described by the metadata.
	ErrFieldNotFound = errors.New("field not found")
	// ErrRowOutOfRange is returned when a row index does not address a current row.
	ErrRowOutOfRange = errors.New("row index out of range")
	// ErrNotExpandable is returned when expanding or collapsing a Fixed row.
	ErrNotExpandable = errors.New("row is not expandable")
	// ErrNotGhost is returned when a ghost operation targets a non-ghost row.
	ErrNotGhost = errors.New("row is not a ghost")
	// ErrNotDummy is returned when a materialize operation targets a non-dummy row.
	ErrNotDummy = errors.New("row is not a dummy")
	// ErrNoRoot is returned when the tree has no root entity.
	ErrNoRoot = errors.New("no root entity")
	// ErrRebuildInProgress is returned by operations that must not run during a rebuild.
	ErrRebuildInProgress = errors.New("rebuild in progress")
	// ErrPrefsNotFound is returned by a PrefsStore when no preferences were saved for a view.
	ErrPrefsNotFound = errors.New("prefs not found")
	// ErrViewNotFound is returned when a view id cannot be found.
	ErrViewNotFound = errors.New("view not found")
)

// ConfigError is a problem with the template configuration found while building.
// The subtree it occurs in is replaced by a single error row.
type ConfigError struct {
	Node   string
	Entity EntityID
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("config error (entity %s): %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("config error at %q (entity %s): %v", e.Node, e.Entity, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RebuildError aggregates the configuration errors found during one rebuild.
type RebuildError struct {
	Errors []error
}

func (e *RebuildError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d config errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *RebuildError) Unwrap() []error { return e.Errors }
