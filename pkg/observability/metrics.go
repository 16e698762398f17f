package observability

import (
	"context"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by tree lifecycle events.
type Metrics struct {
	Rebuilds        *prometheus.CounterVec
	RebuildDuration *prometheus.HistogramVec
	Rows            *prometheus.GaugeVec
	RowEvents       *prometheus.CounterVec
	Ghosts          *prometheus.CounterVec
	Invalidated     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg (nil skips registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detailtree_rebuilds_total",
			Help: "Total number of row list rebuilds",
		}, []string{"view"}),
		RebuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detailtree_rebuild_duration_seconds",
			Help:    "Duration of row list rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"view"}),
		Rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "detailtree_rows",
			Help: "Number of rows after the last rebuild",
		}, []string{"view"}),
		RowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detailtree_row_events_total",
			Help: "Rows created, reused and disposed",
		}, []string{"view", "event", "variant"}),
		Ghosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detailtree_ghosts_materialized_total",
			Help: "Ghost rows turned into real objects",
		}, []string{"view", "field"}),
		Invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detailtree_lines_invalidated_total",
			Help: "Rows reported changed by partial updates",
		}, []string{"view"}),
	}
	if reg != nil {
		reg.MustRegister(m.Rebuilds, m.RebuildDuration, m.Rows, m.RowEvents, m.Ghosts, m.Invalidated)
	}
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	row := func(event string) func(context.Context, *domain.RowEvent) {
		return func(_ context.Context, e *domain.RowEvent) {
			m.RowEvents.WithLabelValues(e.View, event, e.Variant.String()).Inc()
		}
	}
	return domain.LifecycleHooks{
		OnRebuildEnd: func(_ context.Context, e *domain.RebuildEvent) {
			m.Rebuilds.WithLabelValues(e.View).Inc()
			m.RebuildDuration.WithLabelValues(e.View).Observe(e.Duration.Seconds())
			m.Rows.WithLabelValues(e.View).Set(float64(e.Rows))
		},
		OnRowCreated:  row("created"),
		OnRowReused:   row("reused"),
		OnRowDisposed: row("disposed"),
		OnGhostMaterialized: func(_ context.Context, e *domain.GhostEvent) {
			m.Ghosts.WithLabelValues(e.View, e.Field).Inc()
		},
		OnLinesInvalidated: func(_ context.Context, e *domain.InvalidateEvent) {
			m.Invalidated.WithLabelValues(e.View).Add(float64(e.Count))
		},
	}
}
