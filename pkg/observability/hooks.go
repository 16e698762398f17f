package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/detailtree/pkg/domain"
)

// Chain combines several hook sets into one; callbacks run in argument order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnRebuildStart = chain(out.OnRebuildStart, s.OnRebuildStart)
		out.OnRebuildEnd = chain(out.OnRebuildEnd, s.OnRebuildEnd)
		out.OnRowCreated = chain(out.OnRowCreated, s.OnRowCreated)
		out.OnRowReused = chain(out.OnRowReused, s.OnRowReused)
		out.OnRowDisposed = chain(out.OnRowDisposed, s.OnRowDisposed)
		out.OnGhostMaterialized = chain(out.OnGhostMaterialized, s.OnGhostMaterialized)
		out.OnLinesInvalidated = chain(out.OnLinesInvalidated, s.OnLinesInvalidated)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LogHooks logs rebuilds and ghost materializations. Per-row events are logged at
// debug level only.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRebuildEnd: func(ctx context.Context, e *domain.RebuildEvent) {
			logger.InfoContext(ctx, "rebuild",
				"view", e.View,
				"root_id", int64(e.Root),
				"rows", e.Rows,
				"reused", e.Reused,
				"created", e.Created,
				"disposed", e.Disposed,
				"errors", e.Errors,
				"duration", e.Duration,
			)
		},
		OnRowCreated: func(ctx context.Context, e *domain.RowEvent) {
			logger.DebugContext(ctx, "row_created", "key", e.Key, "variant", e.Variant.String())
		},
		OnGhostMaterialized: func(ctx context.Context, e *domain.GhostEvent) {
			logger.InfoContext(ctx, "ghost_materialized",
				"owner", int64(e.Owner),
				"field", e.Field,
				"created", int64(e.Created),
			)
		},
	}
}
