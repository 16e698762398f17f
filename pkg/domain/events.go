package domain

import (
	"context"
	"time"
)

// Change describes a data change reported by the repository after a commit.
type Change struct {
	Entity EntityID
	Field  string
	// RangeChanged is set when items were inserted into or removed from a vector field.
	RangeChanged bool
}

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventRebuildStart     EventType = "rebuild_start"
	EventRebuildEnd       EventType = "rebuild_end"
	EventRowCreated       EventType = "row_created"
	EventRowReused        EventType = "row_reused"
	EventRowDisposed      EventType = "row_disposed"
	EventGhostMaterialize EventType = "ghost_materialized"
	EventLinesInvalidated EventType = "lines_invalidated"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	View      string    `json:"view,omitempty"`
}

// RebuildEvent is emitted at the start and end of every rebuild.
type RebuildEvent struct {
	EventBase
	Root     EntityID      `json:"root"`
	Rows     int           `json:"rows"`
	Reused   int           `json:"reused"`
	Created  int           `json:"created"`
	Disposed int           `json:"disposed"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// RowEvent is emitted for row creation, reuse and disposal.
type RowEvent struct {
	EventBase
	Key     string  `json:"key"`
	Variant Variant `json:"variant"`
	Editor  string  `json:"editor,omitempty"`
}

// GhostEvent is emitted when a ghost row becomes a real object.
type GhostEvent struct {
	EventBase
	Owner   EntityID `json:"owner"`
	Field   string   `json:"field"`
	Created EntityID `json:"created"`
}

// InvalidateEvent is emitted when a range of rows changes after a partial update.
type InvalidateEvent struct {
	EventBase
	Start int `json:"start"`
	Count int `json:"count"`
}

// LifecycleHooks defines callbacks for tree observability.
type LifecycleHooks struct {
	OnRebuildStart      func(context.Context, *RebuildEvent)
	OnRebuildEnd        func(context.Context, *RebuildEvent)
	OnRowCreated        func(context.Context, *RowEvent)
	OnRowReused         func(context.Context, *RowEvent)
	OnRowDisposed       func(context.Context, *RowEvent)
	OnGhostMaterialized func(context.Context, *GhostEvent)
	OnLinesInvalidated  func(context.Context, *InvalidateEvent)
}
