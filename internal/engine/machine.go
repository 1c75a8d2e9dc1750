package engine

import (
	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

const (
	// DefaultEndpointThreshold is the hit distance for grabbing a line endpoint.
	DefaultEndpointThreshold = 5.0
	// DefaultBodyThreshold is the hit distance for selecting a line by its body.
	DefaultBodyThreshold = 1.0
)

// Thresholds configures hit testing. Distances are measured in
// (time/TimeScale, value) space.
type Thresholds struct {
	Endpoint  float64
	Body      float64
	TimeScale float64
}

// DefaultThresholds returns the canonical hit-test configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{Endpoint: DefaultEndpointThreshold, Body: DefaultBodyThreshold, TimeScale: 1}
}

// Machine is the input state machine. It owns the annotation store and the
// mode, buffer and selection state; Apply is the only way to change them.
// Machine is not safe for concurrent use.
type Machine struct {
	th     Thresholds
	metric geometry.Metric
	store  *annotation.Store
	st     State
	// swallowClick drops the click a browser emits after a drag that moved.
	swallowClick bool
}

// NewMachine returns an idle machine with an empty store.
func NewMachine(th Thresholds) *Machine {
	if th.Endpoint <= 0 {
		th.Endpoint = DefaultEndpointThreshold
	}
	if th.Body <= 0 {
		th.Body = DefaultBodyThreshold
	}
	return &Machine{
		th:     th,
		metric: geometry.Metric{TimeScale: th.TimeScale},
		store:  annotation.NewStore(),
		st:     idleState(),
	}
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.st.clone() }

// Annotations returns a copy of the committed annotations in store order.
func (m *Machine) Annotations() []annotation.Annotation { return m.store.All() }

// Annotation returns a copy of the annotation at i.
func (m *Machine) Annotation(i int) (annotation.Annotation, bool) { return m.store.Get(i) }

// Apply runs one transition and returns the resulting state together with
// the effects the caller must carry out.
func (m *Machine) Apply(ev Event) (State, []Effect) {
	var fx []Effect
	switch e := ev.(type) {
	case Click:
		fx = m.click(e.At)
	case PointerDown:
		fx = m.pointerDown(e.At)
	case PointerMove:
		fx = m.pointerMove(e.At)
	case PointerUp:
		fx = m.pointerUp()
	case ToggleMode:
		fx = m.toggleMode(e.Mode)
	case Select:
		fx = m.selectIndex(e.Index)
	case Reset:
		fx = m.reset()
	case DeleteSelected:
		fx = m.deleteSelected()
	case CopySelected:
		fx = m.copySelected()
	}
	return m.State(), fx
}

func (m *Machine) click(p geometry.Point) []Effect {
	if m.swallowClick {
		m.swallowClick = false
		return nil
	}

	switch m.st.Mode {
	case ModeTrendline:
		return m.clickTrendline(p)
	case ModeHorizontal:
		idx := m.store.Add(annotation.NewHorizontal(p.Value, p.Time))
		m.finishAuthoring()
		return []Effect{{Kind: EffectCommitted, Index: idx, Shape: annotation.KindHorizontal}}
	case ModeSixPoint:
		return m.clickSixPoint(p)
	case ModeMoveEndpoint:
		return m.clickMoveEndpoint()
	case ModeCopyTrendline:
		return m.clickCopy()
	}
	return m.clickSelect(p)
}

func (m *Machine) clickTrendline(p geometry.Point) []Effect {
	if len(m.st.Buffer) == 0 {
		m.st.Buffer = []geometry.Point{p}
		return nil
	}
	start := m.st.Buffer[0]
	if start.Time == p.Time {
		return []Effect{{Kind: EffectRejected, Shape: annotation.KindLine, Reason: "duplicate time"}}
	}
	idx := m.store.Add(annotation.NewLine(start, p))
	m.finishAuthoring()
	return []Effect{{Kind: EffectCommitted, Index: idx, Shape: annotation.KindLine}}
}

func (m *Machine) clickSixPoint(p geometry.Point) []Effect {
	if len(m.st.Buffer) >= len(annotation.SixPointLabels) {
		return []Effect{{Kind: EffectRejected, Shape: annotation.KindSixPoint, Reason: "buffer full"}}
	}
	if geometry.HasTime(m.st.Buffer, p.Time) {
		return []Effect{{Kind: EffectRejected, Shape: annotation.KindSixPoint, Reason: "duplicate time"}}
	}
	m.st.Buffer = append(m.st.Buffer, p)
	if len(m.st.Buffer) < len(annotation.SixPointLabels) {
		return nil
	}

	a, err := annotation.NewSixPoint(m.st.Buffer)
	if err != nil {
		return []Effect{{Kind: EffectRejected, Shape: annotation.KindSixPoint, Reason: err.Error()}}
	}
	idx := m.store.Add(a)
	m.finishAuthoring()
	return []Effect{{Kind: EffectCommitted, Index: idx, Shape: annotation.KindSixPoint}}
}

func (m *Machine) clickMoveEndpoint() []Effect {
	idx, ep, hover := m.st.Selected, m.st.Endpoint, m.st.Hover
	a, ok := m.store.Get(idx)
	if ok && a.Kind == annotation.KindLine && hover != nil && a.Points[ep.Other().Index()].Time == hover.Time {
		return []Effect{{Kind: EffectRejected, Index: idx, Shape: annotation.KindLine, Reason: "duplicate time"}}
	}

	m.st.Mode = ModeNone
	m.clearSelection()
	m.st.Hover = nil
	if !ok || a.Kind != annotation.KindLine || hover == nil {
		return nil
	}
	a.Points[ep.Index()] = *hover
	m.store.Set(idx, a)
	return []Effect{{Kind: EffectUpdated, Index: idx, Shape: annotation.KindLine}}
}

func (m *Machine) clickCopy() []Effect {
	if m.st.Hover == nil || m.st.Copy == nil {
		return nil
	}
	start := *m.st.Hover
	end := start.Add(m.st.Copy.DT, m.st.Copy.DV)
	idx := m.store.Add(annotation.NewLine(start, end))
	m.st.Mode = ModeNone
	m.st.Hover = nil
	m.clearSelection()
	return []Effect{{Kind: EffectCommitted, Index: idx, Shape: annotation.KindLine}}
}

func (m *Machine) clickSelect(p geometry.Point) []Effect {
	items := m.store.All()
	if idx, ep, ok := annotation.HitEndpoint(items, p, m.th.Endpoint, m.metric); ok {
		line := items[idx]
		m.st.Mode = ModeMoveEndpoint
		m.st.Selected = idx
		m.st.Endpoint = ep
		m.st.Hover = pointPtr(line.Points[ep.Index()])
		m.st.Anchor = pointPtr(line.Points[ep.Other().Index()])
		m.st.Buffer = nil
		return nil
	}
	if idx, ok := annotation.HitBody(items, p, m.th.Body, m.metric); ok {
		m.st.Selected = idx
		return nil
	}
	m.st.Selected = -1
	return nil
}

func (m *Machine) pointerDown(p geometry.Point) []Effect {
	m.swallowClick = false
	if m.st.Mode != ModeNone || m.st.Drag.Kind != DragNone {
		return nil
	}

	items := m.store.All()
	if idx, ep, ok := annotation.HitEndpoint(items, p, m.th.Endpoint, m.metric); ok {
		m.st.Selected = idx
		m.st.Endpoint = ep
		m.st.Drag = Drag{Kind: DragEndpoint, Index: idx, Endpoint: ep}
		return []Effect{{Kind: EffectCaptureStart, Index: idx, Shape: annotation.KindLine}}
	}

	if m.st.Selected < 0 || m.st.Selected >= len(items) {
		return nil
	}
	line := items[m.st.Selected]
	if !annotation.HitsLineBody(line, p, m.th.Body, m.metric) {
		return nil
	}
	dt, dv := p.Sub(line.Points[0])
	m.st.Drag = Drag{Kind: DragWhole, Index: m.st.Selected, OffsetDT: dt, OffsetDV: dv}
	return nil
}

func (m *Machine) pointerMove(p geometry.Point) []Effect {
	switch m.st.Drag.Kind {
	case DragEndpoint:
		a, ok := m.store.Get(m.st.Drag.Index)
		if !ok || a.Kind != annotation.KindLine {
			return m.endDrag()
		}
		a.Points[m.st.Drag.Endpoint.Index()] = p
		m.store.Set(m.st.Drag.Index, a)
		m.st.Drag.Moved = true
		return []Effect{{Kind: EffectUpdated, Index: m.st.Drag.Index, Shape: annotation.KindLine}}
	case DragWhole:
		a, ok := m.store.Get(m.st.Drag.Index)
		if !ok || a.Kind != annotation.KindLine {
			return m.endDrag()
		}
		dt, dv := a.Points[1].Sub(a.Points[0])
		start := p.Add(-m.st.Drag.OffsetDT, -m.st.Drag.OffsetDV)
		a.Points[0] = start
		a.Points[1] = start.Add(dt, dv)
		m.store.Set(m.st.Drag.Index, a)
		m.st.Drag.Moved = true
		return []Effect{{Kind: EffectUpdated, Index: m.st.Drag.Index, Shape: annotation.KindLine}}
	}

	switch m.st.Mode {
	case ModeTrendline, ModeSixPoint, ModeMoveEndpoint, ModeCopyTrendline:
		m.st.Hover = pointPtr(p)
	}
	return nil
}

func (m *Machine) pointerUp() []Effect {
	if m.st.Drag.Kind == DragNone {
		return nil
	}
	m.swallowClick = m.st.Drag.Moved
	return m.endDrag()
}

// endDrag clears drag state; an endpoint drag also releases pointer capture.
func (m *Machine) endDrag() []Effect {
	d := m.st.Drag
	m.st.Drag = Drag{}
	switch d.Kind {
	case DragEndpoint:
		m.st.Endpoint = annotation.EndpointNone
		return []Effect{{Kind: EffectCaptureEnd, Index: d.Index}}
	}
	return nil
}

func (m *Machine) toggleMode(mode Mode) []Effect {
	if !mode.Toggleable() {
		return []Effect{{Kind: EffectRejected, Reason: "mode " + string(mode) + " cannot be toggled"}}
	}
	fx := m.endDrag()
	prev := m.st.Mode
	if prev == mode {
		m.st.Mode = ModeNone
	} else {
		m.st.Mode = mode
	}
	if prev == ModeMoveEndpoint || prev == ModeCopyTrendline {
		m.st.Selected = -1
	}
	m.st.Buffer = nil
	m.st.Hover = nil
	m.st.Anchor = nil
	m.st.Endpoint = annotation.EndpointNone
	return fx
}

// selectIndex ends any authoring, drag, move-endpoint or copy state and
// selects idx.
func (m *Machine) selectIndex(idx int) []Effect {
	if _, ok := m.store.Get(idx); !ok {
		return nil
	}
	fx := m.endDrag()
	m.st.Mode = ModeNone
	m.st.Buffer = nil
	m.st.Hover = nil
	m.st.Anchor = nil
	m.st.Endpoint = annotation.EndpointNone
	m.st.Selected = idx
	m.swallowClick = false
	return fx
}

func (m *Machine) reset() []Effect {
	fx := m.endDrag()
	m.store.Clear()
	m.st = idleState()
	m.swallowClick = false
	return append(fx, Effect{Kind: EffectCleared})
}

func (m *Machine) deleteSelected() []Effect {
	idx := m.st.Selected
	m.st.Selected = -1
	if idx < 0 {
		return nil
	}
	a, ok := m.store.Get(idx)
	if !ok {
		return nil
	}

	var fx []Effect
	switch {
	case m.st.Drag.Kind != DragNone && m.st.Drag.Index == idx:
		fx = m.endDrag()
	case m.st.Drag.Kind != DragNone && m.st.Drag.Index > idx:
		m.st.Drag.Index--
	}
	if m.st.Mode == ModeMoveEndpoint || m.st.Mode == ModeCopyTrendline {
		m.st.Mode = ModeNone
		m.st.Hover = nil
		m.st.Anchor = nil
	}
	m.st.Endpoint = annotation.EndpointNone

	m.store.Delete(idx)
	return append(fx, Effect{Kind: EffectDeleted, Index: idx, Shape: a.Kind})
}

func (m *Machine) copySelected() []Effect {
	a, ok := m.store.Get(m.st.Selected)
	if !ok || a.Kind != annotation.KindLine {
		return nil
	}
	fx := m.endDrag()
	dt, dv := a.Points[1].Sub(a.Points[0])
	m.st.Copy = &CopyOffset{DT: dt, DV: dv}
	m.st.Mode = ModeCopyTrendline
	m.st.Buffer = nil
	m.st.Anchor = nil
	m.st.Endpoint = annotation.EndpointNone
	if m.st.Hover == nil {
		m.st.Hover = pointPtr(a.Points[0])
	}
	return fx
}

func (m *Machine) finishAuthoring() {
	m.st.Mode = ModeNone
	m.st.Buffer = nil
	m.st.Hover = nil
}

func (m *Machine) clearSelection() {
	m.st.Selected = -1
	m.st.Endpoint = annotation.EndpointNone
	m.st.Anchor = nil
}
