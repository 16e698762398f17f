package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/ports"
	"github.com/aretw0/detailtree/pkg/registry"
)

// GhostManager creates placeholder rows for empty owned fields and turns them into
// real objects when they receive their first value.
type GhostManager struct {
	repo   ports.Repository
	inits  *registry.Initializers
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	view   string
}

// Descriptor works out what a ghost for owner.field would create: the target class
// (explicit override or the field signature) and the string field it edits.
func (g *GhostManager) Descriptor(owner domain.EntityID, f domain.FieldDef, n *domain.TemplateNode) (*domain.GhostDescriptor, error) {
	if n.Ghost == nil {
		return nil, fmt.Errorf("%s has no ghost descriptor", f.Name)
	}
	if !f.Kind.IsOwning() {
		return nil, fmt.Errorf("ghost on %s: %s fields cannot own a new object", f.Name, f.Kind)
	}
	target := n.Ghost.Class
	if target == "" {
		target = f.Target
	}
	meta := g.repo.Metadata()
	def, err := meta.Class(target)
	if err != nil {
		return nil, fmt.Errorf("ghost on %s: %w", f.Name, err)
	}
	if def.Abstract {
		return nil, fmt.Errorf("ghost on %s: target class %s is abstract", f.Name, target)
	}
	if n.Ghost.Field == "" {
		return nil, fmt.Errorf("ghost on %s: missing target field", f.Name)
	}
	tf, err := meta.Field(target, n.Ghost.Field)
	if err != nil {
		return nil, fmt.Errorf("ghost on %s: %w", f.Name, err)
	}
	ws := n.Ghost.WS
	if ws == "" {
		ws = n.WS
	}
	switch tf.Kind {
	case domain.KindString:
	case domain.KindMultiString:
		if ws == "" {
			return nil, fmt.Errorf("ghost on %s: multistring target %s needs a writing system", f.Name, tf.Name)
		}
	default:
		return nil, fmt.Errorf("ghost on %s: target field %s is a %s field", f.Name, tf.Name, tf.Kind)
	}
	return &domain.GhostDescriptor{
		Owner:       owner,
		Field:       f.Name,
		FieldKind:   f.Kind,
		TargetClass: target,
		TargetField: tf.Name,
		WS:          ws,
		Initializer: n.Ghost.Initializer,
	}, nil
}

// MakePlaceholder fills row as the single ghost row of an empty owned field.
func (g *GhostManager) MakePlaceholder(row *domain.Row, owner domain.EntityID, f domain.FieldDef, n *domain.TemplateNode) error {
	desc, err := g.Descriptor(owner, f, n)
	if err != nil {
		return err
	}
	label := n.Ghost.Label
	if label == "" {
		label = n.Label
	}
	if label == "" {
		label = f.Name
	}
	row.Variant = domain.VariantGhost
	row.Entity = owner
	row.Field = f.Name
	row.Node = n
	row.Label = label
	row.Editor = registry.EditorGhost
	row.WS = desc.WS
	row.Value = ""
	row.Ghost = desc
	row.Dummy = nil
	row.DataErr = nil
	row.Err = nil
	return nil
}

// Materialize creates the object a ghost row stands for, in one unit of work:
// create the target, attach it to the owner, write text into the target field and
// run the initializer. Any failure rolls the whole unit back and leaves the row as it
// was. An empty text creates nothing.
func (g *GhostManager) Materialize(ctx context.Context, row *domain.Row, text string) (domain.EntityID, error) {
	if row == nil || row.Variant != domain.VariantGhost || row.Ghost == nil {
		return domain.NoEntity, domain.ErrNotGhost
	}
	if text == "" {
		return domain.NoEntity, nil
	}
	d := row.Ghost
	if !g.repo.Valid(d.Owner) {
		return domain.NoEntity, fmt.Errorf("ghost owner %s: %w", d.Owner, domain.ErrEntityNotFound)
	}

	uow, err := g.repo.Begin(ctx, "create "+string(d.TargetClass))
	if err != nil {
		return domain.NoEntity, err
	}
	created, err := g.fill(ctx, uow, d, text)
	if err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		g.logger.Warn("ghost materialization failed", "owner", int64(d.Owner), "field", d.Field, "error", err)
		return domain.NoEntity, fmt.Errorf("materialize %s.%s: %w", d.Owner, d.Field, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return domain.NoEntity, fmt.Errorf("materialize %s.%s: %w", d.Owner, d.Field, err)
	}

	g.logger.Debug("ghost materialized", "owner", int64(d.Owner), "field", d.Field, "created", int64(created))
	if g.hooks.OnGhostMaterialized != nil {
		g.hooks.OnGhostMaterialized(ctx, &domain.GhostEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventGhostMaterialize, View: g.view},
			Owner:     d.Owner,
			Field:     d.Field,
			Created:   created,
		})
	}
	return created, nil
}

func (g *GhostManager) fill(ctx context.Context, uow ports.UnitOfWork, d *domain.GhostDescriptor, text string) (domain.EntityID, error) {
	id, err := uow.Create(d.TargetClass, d.Owner, d.Field, -1)
	if err != nil {
		return domain.NoEntity, err
	}
	tf, err := g.repo.Metadata().Field(d.TargetClass, d.TargetField)
	if err != nil {
		return domain.NoEntity, err
	}
	if tf.Kind == domain.KindMultiString {
		err = uow.SetMultiString(id, d.TargetField, d.WS, text)
	} else {
		err = uow.SetString(id, d.TargetField, text)
	}
	if err != nil {
		return domain.NoEntity, err
	}
	if d.Initializer != "" {
		fn, ok := g.inits.Lookup(d.Initializer)
		if !ok {
			return domain.NoEntity, fmt.Errorf("initializer %q not registered", d.Initializer)
		}
		if err := fn(ctx, uow, id); err != nil {
			return domain.NoEntity, fmt.Errorf("initializer %q: %w", d.Initializer, err)
		}
	}
	return id, nil
}
