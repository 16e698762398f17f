package ports

import (
	"context"

	"github.com/aretw0/detailtree/pkg/domain"
)

// TemplateSource provides layout and part definitions.
//
// Returned nodes are canonical and shared: callers must not modify them.
type TemplateSource interface {
	// LookupLayout returns the layout {class, layoutType, name} declared for exactly
	// this class; superclass fallback is the caller's job.
	// Returns domain.ErrLayoutNotFound when absent.
	LookupLayout(class domain.ClassID, layoutType, name string) (*domain.TemplateNode, error)

	// LookupPart returns the part stored under key (see domain.PartKey).
	// Returns domain.ErrPartNotFound when absent.
	LookupPart(key string) (*domain.TemplateNode, error)

	// Unify merges a layout with a caller-supplied override for a reference field.
	Unify(base, override *domain.TemplateNode) *domain.TemplateNode
}

// TemplateLister is implemented by sources that can enumerate their definitions.
type TemplateLister interface {
	ListTemplates() ([]string, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying definitions change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
