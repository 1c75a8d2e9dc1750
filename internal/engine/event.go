package engine

import (
	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

// Event is an input to Machine.Apply. Pointer positions are already
// resolved to (time, value); unresolvable input never becomes an Event.
type Event interface {
	eventName() string
}

type Click struct{ At geometry.Point }
type PointerDown struct{ At geometry.Point }
type PointerMove struct{ At geometry.Point }
type PointerUp struct{ At geometry.Point }

// ToggleMode selects a tool, or deselects it when it is already active.
type ToggleMode struct{ Mode Mode }

// Select selects the annotation at Index regardless of its kind. A stale
// index is ignored.
type Select struct{ Index int }

type Reset struct{}
type DeleteSelected struct{}
type CopySelected struct{}

func (Click) eventName() string          { return "click" }
func (PointerDown) eventName() string    { return "pointer_down" }
func (PointerMove) eventName() string    { return "pointer_move" }
func (PointerUp) eventName() string      { return "pointer_up" }
func (ToggleMode) eventName() string     { return "toggle_mode" }
func (Select) eventName() string         { return "select" }
func (Reset) eventName() string          { return "reset" }
func (DeleteSelected) eventName() string { return "delete_selected" }
func (CopySelected) eventName() string   { return "copy_selected" }

// EventName returns a stable name for logs and metrics.
func EventName(ev Event) string { return ev.eventName() }

// EffectKind classifies what an Apply call changed outside of State.
type EffectKind int

const (
	// EffectCommitted: a new annotation was appended at Index.
	EffectCommitted EffectKind = iota
	// EffectUpdated: the annotation at Index changed in place.
	EffectUpdated
	// EffectDeleted: the annotation at Index was removed; later indices shifted.
	EffectDeleted
	// EffectCleared: the store was emptied.
	EffectCleared
	// EffectCaptureStart: pointer moves must be followed outside the chart
	// container until EffectCaptureEnd.
	EffectCaptureStart
	EffectCaptureEnd
	// EffectRejected: input was recognised but refused; Reason says why.
	EffectRejected
)

func (k EffectKind) String() string {
	switch k {
	case EffectCommitted:
		return "committed"
	case EffectUpdated:
		return "updated"
	case EffectDeleted:
		return "deleted"
	case EffectCleared:
		return "cleared"
	case EffectCaptureStart:
		return "capture_start"
	case EffectCaptureEnd:
		return "capture_end"
	case EffectRejected:
		return "rejected"
	}
	return "unknown"
}

// Effect is a side effect the owner of a Machine has to carry out.
type Effect struct {
	Kind   EffectKind
	Index  int
	Shape  annotation.Kind
	Reason string
}
