package engine

import (
	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

// Mode is the active authoring or editing mode.
type Mode string

const (
	ModeNone          Mode = "none"
	ModeTrendline     Mode = "trendline"
	ModeHorizontal    Mode = "horizontal"
	ModeSixPoint      Mode = "sixpoint"
	ModeMoveEndpoint  Mode = "move-endpoint"
	ModeCopyTrendline Mode = "copy-trendline"
)

// ParseMode converts an external mode name. Only modes that can be chosen
// from a tool picker are accepted.
func ParseMode(s string) (Mode, bool) {
	m := Mode(s)
	if m.Toggleable() {
		return m, true
	}
	return "", false
}

// Toggleable reports whether m may be selected with a ToggleMode command.
func (m Mode) Toggleable() bool {
	switch m {
	case ModeTrendline, ModeHorizontal, ModeSixPoint:
		return true
	}
	return false
}

// Phase names the state machine node the current State corresponds to.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAuthoring   Phase = "authoring"
	PhaseSelecting   Phase = "selecting"
	PhaseDragging    Phase = "dragging"
	PhaseMovingWhole Phase = "moving-whole"
	PhaseCopying     Phase = "copying"
)

// DragKind distinguishes the two pointer drags.
type DragKind int

const (
	DragNone DragKind = iota
	DragEndpoint
	DragWhole
)

// Drag is an in-progress pointer drag on a committed line.
type Drag struct {
	Kind     DragKind
	Index    int
	Endpoint annotation.Endpoint
	// Offset from the line's first point to the pointer at drag start.
	OffsetDT int64
	OffsetDV float64
	Moved    bool
}

// CopyOffset is the (time, value) delta of the last copied line.
type CopyOffset struct {
	DT int64   `json:"dt"`
	DV float64 `json:"dv"`
}

// State is the mode, buffer and selection of one session.
type State struct {
	Mode Mode
	// Buffer holds the points of the annotation being authored, in the
	// order they were placed.
	Buffer   []geometry.Point
	Hover    *geometry.Point
	Selected int
	Endpoint annotation.Endpoint
	// Anchor is the fixed end of a line whose other endpoint is being moved.
	Anchor *geometry.Point
	Copy   *CopyOffset
	Drag   Drag
}

func idleState() State {
	return State{Mode: ModeNone, Selected: -1}
}

// Phase derives the state machine node.
func (s State) Phase() Phase {
	switch {
	case s.Drag.Kind == DragEndpoint:
		return PhaseDragging
	case s.Drag.Kind == DragWhole:
		return PhaseMovingWhole
	case s.Mode == ModeCopyTrendline:
		return PhaseCopying
	case s.Mode == ModeMoveEndpoint:
		return PhaseDragging
	case s.Mode != ModeNone:
		return PhaseAuthoring
	case s.Selected >= 0:
		return PhaseSelecting
	}
	return PhaseIdle
}

func (s State) clone() State {
	out := s
	if s.Buffer != nil {
		out.Buffer = append([]geometry.Point(nil), s.Buffer...)
	}
	if s.Hover != nil {
		h := *s.Hover
		out.Hover = &h
	}
	if s.Anchor != nil {
		a := *s.Anchor
		out.Anchor = &a
	}
	if s.Copy != nil {
		c := *s.Copy
		out.Copy = &c
	}
	return out
}

func pointPtr(p geometry.Point) *geometry.Point { return &p }
