package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/registry"
)

// BuildOptions are the per-build inputs that do not come from templates or data.
type BuildOptions struct {
	// ShowHidden makes "never" nodes visible.
	ShowHidden bool
	// PreserveExpansion keeps the expansion state of reused rows.
	PreserveExpansion bool
	// Touched lists entity-id paths that must not be paged out.
	Touched [][]domain.EntityID
}

// session is the state of one build pass. It is threaded through the recursive
// build and discarded afterwards; nothing in it outlives the pass.
type session struct {
	ctx   context.Context
	e     *Engine
	opts  BuildOptions
	reuse *ReuseMap
	pager *Pager

	// layouts and parts are the rebuild-scoped overlay: resolved, spliced and unified
	// templates keyed by class and name. A nil part marks a missing one.
	layouts map[string]*domain.TemplateNode
	parts   map[string]*domain.TemplateNode

	errs      []error
	absorbed  int
	discarded []*domain.Row
	depth     int

	usedConditions bool
	deps           Deps
	created        int
	reused         int
	cancelled      error
}

func (e *Engine) newSession(ctx context.Context, reuse *ReuseMap, opts BuildOptions) *session {
	return &session{
		ctx:     ctx,
		e:       e,
		opts:    opts,
		reuse:   reuse,
		pager:   NewPager(e.threshold, opts.Touched),
		layouts: make(map[string]*domain.TemplateNode),
		parts:   make(map[string]*domain.TemplateNode),
		deps:    newDeps(),
	}
}

// dependsOnData marks field of id as deciding an "ifdata" node.
func (s *session) dependsOnData(id domain.EntityID, field string) {
	s.deps.IfData[FieldRef{Entity: id, Field: field}] = true
}

// layout resolves the layout for class, with custom fields spliced in.
func (s *session) layout(class domain.ClassID, name string) (*domain.TemplateNode, error) {
	key := string(class) + "|" + name
	if n, ok := s.layouts[key]; ok {
		return n, nil
	}
	n, err := s.e.resolver.Resolve(class, name)
	if err != nil {
		return nil, err
	}
	n, err = s.e.resolver.SpliceCustomFields(n, class)
	if err != nil {
		return nil, err
	}
	s.layouts[key] = n
	return n, nil
}

// part resolves a part reference; nil without error means the part does not exist.
func (s *session) part(class domain.ClassID, ref *domain.TemplateNode) (*domain.TemplateNode, error) {
	key := string(class) + "|" + ref.Key + "|" + ref.Part
	if n, ok := s.parts[key]; ok {
		return n, nil
	}
	n, err := s.e.resolver.ResolvePart(class, ref)
	if err != nil {
		return nil, err
	}
	if n != nil && len(n.Children) > 0 {
		if n, err = s.e.resolver.SpliceCustomFields(n, class); err != nil {
			return nil, err
		}
	}
	s.parts[key] = n
	return n, nil
}

func (s *session) condition(n *domain.TemplateNode, id domain.EntityID) (bool, error) {
	s.usedConditions = true
	if n.Condition == "" {
		return true, nil
	}
	return s.e.conditions.Eval(n.Condition, s.e.repo, s.e.resolver, id)
}

// choose returns the first case of a choice node whose condition holds.
func (s *session) choose(n *domain.TemplateNode, id domain.EntityID) (*domain.TemplateNode, error) {
	for _, alt := range n.Children {
		ok, err := s.condition(alt, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return alt, nil
		}
	}
	return nil, nil
}

func (s *session) hidden(n *domain.TemplateNode) bool {
	return n.EffectiveVisibility() == domain.VisibilityNever && !s.opts.ShowHidden
}

// adopt returns the row to fill for key: a reused one when the previous build had a
// row there, else a new one.
func (s *session) adopt(key domain.PathKey) (*domain.Row, bool) {
	if r := s.reuse.TakeIfPresent(key); r != nil {
		s.reused++
		return r, true
	}
	s.created++
	return &domain.Row{}, false
}

func (s *session) emitRow(r *domain.Row, reused bool) {
	hooks := s.e.hooks
	fn := hooks.OnRowCreated
	typ := domain.EventRowCreated
	if reused {
		fn = hooks.OnRowReused
		typ = domain.EventRowReused
	}
	if fn == nil {
		return
	}
	fn(s.ctx, &domain.RowEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, View: s.e.view},
		Key:       r.Key.String(),
		Variant:   r.Variant,
		Editor:    r.Editor,
	})
}

// fail records a configuration error and appends the error row standing in for the
// subtree of n.
func (s *session) fail(out *[]*domain.Row, n *domain.TemplateNode, id domain.EntityID, indent int, err error) {
	var cfg *domain.ConfigError
	if !errors.As(err, &cfg) {
		key := ""
		if n != nil {
			key = n.Key
		}
		cfg = &domain.ConfigError{Node: key, Entity: id, Err: err}
	}
	s.errs = append(s.errs, cfg)
	s.e.logger.Warn("template configuration error", "node", cfg.Node, "entity_id", int64(cfg.Entity), "error", cfg.Err)
	*out = append(*out, s.errorRow(n, id, indent, cfg))
}

func (s *session) errorRow(n *domain.TemplateNode, id domain.EntityID, indent int, err error) *domain.Row {
	r := &domain.Row{
		Variant: domain.VariantError,
		Entity:  id,
		Node:    n,
		Label:   "error",
		Editor:  registry.EditorError,
		Indent:  indent,
		Err:     err,
		Value:   err.Error(),
	}
	if ctrl, cerr := s.e.editors.Create(registry.EditorError, r); cerr == nil {
		r.Control = ctrl
	}
	s.created++
	s.emitRow(r, false)
	return r
}

// abandon replaces the rows built since start by a single error row when a
// configuration error was recorded after errsBefore and not already absorbed by a
// nested element.
func (s *session) abandon(out *[]*domain.Row, start, errsBefore int, n *domain.TemplateNode, id domain.EntityID, indent int) {
	if len(s.errs) <= errsBefore || s.absorbed >= len(s.errs) {
		return
	}
	s.absorbed = len(s.errs)
	if len(*out) == start+1 && (*out)[start].Variant == domain.VariantError {
		return
	}
	s.discarded = append(s.discarded, (*out)[start:]...)
	*out = (*out)[:start]
	*out = append(*out, s.errorRow(n, id, indent, s.errs[len(s.errs)-1]))
}

func (s *session) enter(n *domain.TemplateNode, id domain.EntityID) error {
	if s.cancelled != nil {
		return s.cancelled
	}
	if err := s.ctx.Err(); err != nil {
		s.cancelled = err
		return err
	}
	if s.depth >= s.e.maxDepth {
		return &domain.ConfigError{Node: n.Key, Entity: id, Err: fmt.Errorf("template nesting deeper than %d", s.e.maxDepth)}
	}
	s.depth++
	return nil
}

func (s *session) leave() { s.depth-- }
