package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/detailtree"
	"github.com/aretw0/detailtree/internal/testutils"
	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRebuilds(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	repo, tmpl := testutils.LoadLexicon(t, testutils.EntryFixture)
	tree, err := detailtree.New("", repo,
		detailtree.WithTemplates(tmpl),
		detailtree.WithView("main"),
		detailtree.WithLifecycleHooks(metrics.Hooks()),
	)
	require.NoError(t, err)
	defer tree.Close()

	ctx := context.Background()
	require.NoError(t, tree.Rebuild(ctx, 2, ""))
	require.NoError(t, tree.Refresh(ctx, true))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Rebuilds.WithLabelValues("main")))
	assert.Equal(t, float64(tree.Len()), testutil.ToFloat64(metrics.Rows.WithLabelValues("main")))
	reused := testutil.ToFloat64(metrics.RowEvents.WithLabelValues("main", "reused", domain.VariantReal.String())) +
		testutil.ToFloat64(metrics.RowEvents.WithLabelValues("main", "reused", domain.VariantGhost.String()))
	assert.Equal(t, float64(tree.Len()), reused, "the second rebuild reuses every row")

	_, err = tree.CommitGhost(ctx, 1, "wɔːk")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Ghosts.WithLabelValues("main", "Pronunciation")))

	n, err := testutil.GatherAndCount(reg, "detailtree_rebuild_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChain_RunsEverySet(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnRebuildEnd: func(context.Context, *domain.RebuildEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnRebuildEnd: func(context.Context, *domain.RebuildEvent) { calls = append(calls, "b") },
		OnRowCreated: func(context.Context, *domain.RowEvent) { calls = append(calls, "row") },
	}
	h := observability.Chain(a, domain.LifecycleHooks{}, b)
	h.OnRebuildEnd(context.Background(), &domain.RebuildEvent{})
	h.OnRowCreated(context.Background(), &domain.RowEvent{})
	assert.Nil(t, h.OnRowDisposed)
	assert.Equal(t, []string{"a", "b", "row"}, calls)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := observability.LogHooks(logger)
	h.OnRebuildEnd(context.Background(), &domain.RebuildEvent{Root: 7, Rows: 3})
	assert.Contains(t, buf.String(), "root_id=7")
	assert.Contains(t, buf.String(), "rows=3")
}
