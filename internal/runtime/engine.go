package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/detailtree/internal/logging"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/registry"
	"github.com/aretw0/detailtree/pkg/schema"
)

// DefaultMaxDepth bounds template nesting (parts, objects, sequences) in one build.
const DefaultMaxDepth = 64

// Engine builds detail-tree rows for entities of a repository from the templates
// of a template source. It holds no per-view state and can serve several views.
type Engine struct {
	repo       ports.Repository
	resolver   *Resolver
	conditions *Conditions
	editors    *registry.Editors
	inits      *registry.Initializers
	ghosts     *GhostManager
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	view       string
	threshold  int
	autoExpand bool
	maxDepth   int

	validatorsMu sync.Mutex
	validators   map[string]schema.Type
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithView names the view reported in lifecycle events.
func WithView(name string) EngineOption {
	return func(e *Engine) {
		e.view = name
	}
}

// WithLazyThreshold sets the sequence length from which elements are paged.
// Zero or less disables paging.
func WithLazyThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.threshold = n
	}
}

// WithAutoExpand sets whether rows with children start expanded (default true).
// Nodes with an explicit expansion policy override it.
func WithAutoExpand(on bool) EngineOption {
	return func(e *Engine) {
		e.autoExpand = on
	}
}

// WithEditors sets the editor registry (default registry.DefaultEditors).
func WithEditors(r *registry.Editors) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.editors = r
		}
	}
}

// WithInitializers sets the named ghost initializers.
func WithInitializers(r *registry.Initializers) EngineOption {
	return func(e *Engine) {
		e.inits = r
	}
}

// WithValidators registers named validators that layouts can refer to alongside
// the built-in type names.
func WithValidators(named schema.Schema) EngineOption {
	return func(e *Engine) {
		for name, t := range named {
			e.validators[name] = t
		}
	}
}

// WithMaxDepth bounds template nesting.
func WithMaxDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// NewEngine creates an engine over a repository and a template source.
func NewEngine(repo ports.Repository, templates ports.TemplateSource, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:       repo,
		resolver:   NewResolver(templates, repo.Metadata()),
		conditions: NewConditions(),
		editors:    registry.DefaultEditors(),
		inits:      registry.NewInitializers(),
		logger:     logging.NewNop(),
		threshold:  DefaultLazyThreshold,
		autoExpand: true,
		maxDepth:   DefaultMaxDepth,
		validators: make(map[string]schema.Type),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ghosts = &GhostManager{repo: repo, inits: e.inits, logger: e.logger, hooks: e.hooks, view: e.view}
	return e
}

// Repository returns the repository the engine reads from.
func (e *Engine) Repository() ports.Repository { return e.repo }

// Resolver returns the layout resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Result is the outcome of a build pass.
type Result struct {
	Rows []*domain.Row
	// Errors holds the configuration errors met; each also produced an error row.
	Errors []error
	// Disposed are the rows of the previous build that were not reused. They have
	// already been disposed.
	Disposed []*domain.Row
	Created  int
	Reused   int
	// UsedConditions is set when any if/choice node was evaluated.
	UsedConditions bool
	Deps           Deps
}

// Err returns the configuration errors as a *domain.RebuildError, or nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &domain.RebuildError{Errors: r.Errors}
}

// Build produces the rows of the root entity's layout. Rows of the previous build
// are recycled through reuse, which is drained; leftovers are disposed.
//
// Configuration errors do not stop the build: the affected subtree becomes an
// error row and the errors are reported once, through Result.Err. A cancelled
// context stops the build and returns the context error with the rows built so far.
func (e *Engine) Build(ctx context.Context, root domain.EntityID, layout string, reuse *ReuseMap, opts BuildOptions) (*Result, error) {
	start := time.Now()
	e.emitRebuild(ctx, domain.EventRebuildStart, &domain.RebuildEvent{Root: root})

	s := e.newSession(ctx, reuse, opts)
	var rows []*domain.Row
	if !e.repo.Valid(root) {
		s.discarded = append(s.discarded, reuse.Drain()...)
		e.dispose(ctx, s.discarded)
		return nil, fmt.Errorf("root %s: %w", root, domain.ErrEntityNotFound)
	}
	class, err := e.repo.ClassOf(root)
	if err == nil {
		var tmpl *domain.TemplateNode
		tmpl, err = s.layout(class, layout)
		if err == nil {
			s.build(&rows, tmpl, root, domain.RootKey(root), 0)
		}
	}
	if err != nil {
		s.fail(&rows, nil, root, 0, err)
	}

	res := &Result{
		Rows:           rows,
		Errors:         s.errs,
		Created:        s.created,
		Reused:         s.reused,
		UsedConditions: s.usedConditions,
		Deps:           s.deps,
	}
	res.Disposed = append(s.discarded, reuse.Drain()...)
	e.dispose(ctx, res.Disposed)

	e.emitRebuild(ctx, domain.EventRebuildEnd, &domain.RebuildEvent{
		Root:     root,
		Rows:     len(rows),
		Reused:   res.Reused,
		Created:  res.Created,
		Disposed: len(res.Disposed),
		Errors:   len(res.Errors),
		Duration: time.Since(start),
	})
	e.logger.Debug("rows built", "root_id", int64(root), "layout", layout, "rows", len(rows),
		"reused", res.Reused, "created", res.Created, "disposed", len(res.Disposed), "errors", len(res.Errors))
	if s.cancelled != nil {
		return res, s.cancelled
	}
	return res, nil
}

// BuildChildren builds the rows nested under a row with a child template, as an
// expansion in place would show them.
func (e *Engine) BuildChildren(ctx context.Context, row *domain.Row, opts BuildOptions) (*Result, error) {
	if row.Variant != domain.VariantReal || !row.HasChildTemplate() {
		return nil, domain.ErrNotExpandable
	}
	s := e.newSession(ctx, nil, opts)
	var rows []*domain.Row
	for _, c := range row.Node.Children {
		s.build(&rows, c, row.Entity, row.Key, row.Indent+1)
	}
	return e.partial(s, rows)
}

// Materialize builds the real rows of the element a dummy row stands for. The
// first row's key is the one a non-paged build gives the same element.
func (e *Engine) Materialize(ctx context.Context, dummy *domain.Row, opts BuildOptions) (*Result, error) {
	if dummy.Variant != domain.VariantDummy || dummy.Dummy == nil {
		return nil, domain.ErrNotDummy
	}
	return e.BuildElement(ctx, dummy.Dummy.Node, dummy.Dummy.Element, dummy.Key, dummy.Indent, opts)
}

// BuildElement builds the rows of elem reached through the obj or seq node n, keyed
// and indented as a full build places them at key.
func (e *Engine) BuildElement(ctx context.Context, n *domain.TemplateNode, elem domain.EntityID, key domain.PathKey, indent int, opts BuildOptions) (*Result, error) {
	if n == nil || (n.Kind != domain.NodeObject && n.Kind != domain.NodeSequence) {
		return nil, fmt.Errorf("element of a %q node: %w", kindOf(n), domain.ErrNotExpandable)
	}
	s := e.newSession(ctx, nil, opts)
	var rows []*domain.Row
	if e.repo.Valid(elem) {
		s.buildElement(&rows, n, elem, key, indent)
	}
	return e.partial(s, rows)
}

// Paged reports whether a sequence of size elements is built as placeholders.
func (e *Engine) Paged(size int) bool {
	return NewPager(e.threshold, nil).Lazy(size)
}

func kindOf(n *domain.TemplateNode) domain.NodeKind {
	if n == nil {
		return ""
	}
	return n.Kind
}

func (e *Engine) partial(s *session, rows []*domain.Row) (*Result, error) {
	e.dispose(s.ctx, s.discarded)
	res := &Result{Rows: rows, Errors: s.errs, Created: s.created, UsedConditions: s.usedConditions, Deps: s.deps, Disposed: s.discarded}
	if s.cancelled != nil {
		return res, s.cancelled
	}
	return res, nil
}

// Evaluate is the side-effect free dry run of a template node for an entity.
func (e *Engine) Evaluate(ctx context.Context, n *domain.TemplateNode, id domain.EntityID, showHidden bool) domain.Presence {
	return e.newSession(ctx, nil, BuildOptions{ShowHidden: showHidden}).evaluate(n, id)
}

// RefreshRow re-reads the value of a real row in place.
func (e *Engine) RefreshRow(row *domain.Row) error {
	if row.Variant != domain.VariantReal || row.Field == "" {
		return nil
	}
	class, err := e.repo.ClassOf(row.Entity)
	if err != nil {
		return err
	}
	f, err := e.repo.Metadata().Field(class, row.Field)
	if err != nil {
		return err
	}
	if err := e.loadValue(row, f); err != nil {
		return err
	}
	if row.Control != nil {
		row.Control.SetValue(row.Value)
	}
	return nil
}

// CommitGhost materializes the object behind a ghost row with its first value.
func (e *Engine) CommitGhost(ctx context.Context, row *domain.Row, text string) (domain.EntityID, error) {
	return e.ghosts.Materialize(ctx, row, text)
}

// Dispose releases rows and reports them to the lifecycle hooks.
func (e *Engine) Dispose(ctx context.Context, rows []*domain.Row) {
	e.dispose(ctx, rows)
}

func (e *Engine) dispose(ctx context.Context, rows []*domain.Row) {
	for _, r := range rows {
		r.Dispose()
		if e.hooks.OnRowDisposed != nil {
			e.hooks.OnRowDisposed(ctx, &domain.RowEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRowDisposed, View: e.view},
				Key:       r.Key.String(),
				Variant:   r.Variant,
				Editor:    r.Editor,
			})
		}
	}
}

func (e *Engine) emitRebuild(ctx context.Context, typ domain.EventType, ev *domain.RebuildEvent) {
	ev.EventBase = domain.EventBase{Timestamp: time.Now(), Type: typ, View: e.view}
	fn := e.hooks.OnRebuildStart
	if typ == domain.EventRebuildEnd {
		fn = e.hooks.OnRebuildEnd
	}
	if fn != nil {
		fn(ctx, ev)
	}
}

// EmitInvalidated reports a changed range of rows.
func (e *Engine) EmitInvalidated(ctx context.Context, start, count int) {
	if e.hooks.OnLinesInvalidated == nil {
		return
	}
	e.hooks.OnLinesInvalidated(ctx, &domain.InvalidateEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventLinesInvalidated, View: e.view},
		Start:     start,
		Count:     count,
	})
}

func (e *Engine) validator(name string) (schema.Type, error) {
	e.validatorsMu.Lock()
	defer e.validatorsMu.Unlock()
	if t, ok := e.validators[name]; ok {
		return t, nil
	}
	t, err := schema.ParseType(name)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	e.validators[name] = t
	return t, nil
}

// Check validates the values of id's own fields against the validators named in
// its layout and returns every failure at once (a *schema.AggregateError).
func (e *Engine) Check(ctx context.Context, id domain.EntityID, layout string) error {
	class, err := e.repo.ClassOf(id)
	if err != nil {
		return err
	}
	s := e.newSession(ctx, nil, BuildOptions{ShowHidden: true})
	tmpl, err := s.layout(class, layout)
	if err != nil {
		return err
	}
	sch := schema.Schema{}
	data := map[string]any{}
	var collect func(n *domain.TemplateNode)
	collect = func(n *domain.TemplateNode) {
		switch n.Kind {
		case domain.NodeObject, domain.NodeSequence:
			return
		case domain.NodePart:
			if p, err := s.part(class, n); err == nil && p != nil {
				collect(p)
			}
			return
		}
		if n.Field != "" && n.Validator != "" {
			if t, err := e.validator(n.Validator); err == nil {
				f, ferr := e.repo.Metadata().Field(class, n.Field)
				if ferr == nil {
					if v, rerr := e.readField(id, f, n.WS); rerr == nil {
						sch[n.Field] = t
						data[n.Field] = v
					}
				}
			}
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(tmpl)
	return schema.Validate(sch, data)
}
