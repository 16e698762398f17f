package detailtree

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/internal/runtime"
	loamAdapter "github.com/aretw0/detailtree/pkg/adapters/loam"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/registry"
	"github.com/aretw0/detailtree/pkg/schema"
	"github.com/aretw0/loam"
)

// Tree is the high-level entry point of the library: the controller of one detail
// view. It owns the row list of a root entity and keeps it in sync with the data
// across rebuilds, expansions and edits.
//
// A Tree is not safe for concurrent use; callers that share one (see pkg/session)
// serialize access.
type Tree struct {
	engine    *runtime.Engine
	repo      ports.Repository
	templates ports.TemplateSource
	notifier  ports.ChangeNotifier
	prefs     ports.PrefsStore
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	view      string

	runtimeOpts []runtime.EngineOption
	showHidden  bool
	labelWidth  int

	root   domain.EntityID
	layout string
	rows   []*domain.Row
	cur    int
	top    int
	errs   []error

	usedConditions bool
	deps           runtime.Deps
	rebuild        *rebuildSession
	suppress       int
	suppressed     bool
	touched        [][]domain.EntityID
	unsubscribe    func()

	Name string
}

// Option defines a functional option for configuring the Tree.
type Option func(*Tree)

// WithTemplates injects a template source, bypassing the default Loam initialization.
func WithTemplates(src ports.TemplateSource) Option {
	return func(t *Tree) {
		t.templates = src
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(t *Tree) {
		t.hooks = hooks
	}
}

// WithLazyThreshold sets the sequence length from which elements are shown as
// placeholders (default 15; zero or less disables paging).
func WithLazyThreshold(n int) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithLazyThreshold(n))
	}
}

// WithAutoExpand sets whether rows with children start expanded (default true).
func WithAutoExpand(on bool) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithAutoExpand(on))
	}
}

// WithEditors sets the editor registry.
func WithEditors(r *registry.Editors) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithEditors(r))
	}
}

// WithInitializers sets the named initializers run when ghosts are materialized.
func WithInitializers(r *registry.Initializers) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithInitializers(r))
	}
}

// WithValidators registers named validators for the "validator" of template nodes.
func WithValidators(named schema.Schema) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithValidators(named))
	}
}

// WithMaxDepth bounds template nesting.
func WithMaxDepth(n int) Option {
	return func(t *Tree) {
		t.runtimeOpts = append(t.runtimeOpts, runtime.WithMaxDepth(n))
	}
}

// WithPrefs reads the view's preferences from store at every rebuild.
func WithPrefs(store ports.PrefsStore) Option {
	return func(t *Tree) {
		t.prefs = store
	}
}

// WithView names the view; the name keys preferences and lifecycle events.
func WithView(name string) Option {
	return func(t *Tree) {
		t.view = name
	}
}

// WithShowHidden shows "never" fields when no preferences say otherwise.
func WithShowHidden(on bool) Option {
	return func(t *Tree) {
		t.showHidden = on
	}
}

// WithNotifier subscribes the tree to repository change notifications.
func WithNotifier(n ports.ChangeNotifier) Option {
	return func(t *Tree) {
		t.notifier = n
	}
}

// New creates the controller of a detail view over repo.
// By default templates are read from a Loam repository at templatesDir.
// If WithTemplates is provided, templatesDir can be empty and Loam is skipped.
func New(templatesDir string, repo ports.Repository, opts ...Option) (*Tree, error) {
	if repo == nil {
		return nil, fmt.Errorf("a repository is required")
	}
	t := &Tree{repo: repo, cur: -1, view: "default"}

	for _, opt := range opts {
		opt(t)
	}

	if t.templates == nil {
		if templatesDir == "" {
			return nil, fmt.Errorf("templatesDir is required when no template source is provided")
		}
		absPath, err := filepath.Abs(templatesDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		t.Name = filepath.Base(absPath)

		// The tree never writes templates back.
		lr, err := loam.Init(absPath,
			loam.WithStrict(true),
			loam.WithReadOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		t.templates = loamAdapter.New(loam.NewTypedRepository[loamAdapter.DocMetadata](lr))
	} else if templatesDir != "" {
		t.Name = filepath.Base(templatesDir)
	}

	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	t.logger = t.logger.With("view", t.view)
	if t.Name != "" {
		t.logger = t.logger.With("templates", t.Name)
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithLogger(t.logger),
		runtime.WithLifecycleHooks(t.hooks),
		runtime.WithView(t.view),
	}
	engineOpts = append(engineOpts, t.runtimeOpts...)
	t.engine = runtime.NewEngine(repo, t.templates, engineOpts...)

	if t.notifier != nil {
		t.unsubscribe = t.notifier.Subscribe(func(c domain.Change) {
			if err := t.HandleChange(context.Background(), c); err != nil {
				t.logger.Warn("refresh after change failed", "entity_id", int64(c.Entity), "field", c.Field, "err", err)
			}
		})
	}
	return t, nil
}

// Close stops listening for changes and disposes every row.
func (t *Tree) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.engine.Dispose(context.Background(), t.rows)
	t.rows = nil
	t.cur = -1
	t.top = 0
}

// Templates returns the template source of the tree.
func (t *Tree) Templates() ports.TemplateSource { return t.templates }

// Repository returns the repository the tree shows.
func (t *Tree) Repository() ports.Repository { return t.repo }

// Watch returns a channel that signals when the template definitions change.
// Returns error if the template source does not support watching.
func (t *Tree) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := t.templates.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current template source does not support watching")
}

// Check validates the root entity's values against the validators of its layout.
func (t *Tree) Check(ctx context.Context) error {
	if t.root.IsZero() {
		return domain.ErrNoRoot
	}
	return t.engine.Check(ctx, t.root, t.layout)
}
