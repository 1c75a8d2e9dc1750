package cdpsurface

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

var _ surface.Surface = (*Pane)(nil)

var errForeignSeries = errors.New("cdpsurface: series belongs to another pane")

// pageEvent is the binding payload sent by the chart page.
type pageEvent struct {
	Pane  string   `json:"pane"`
	Type  string   `json:"type"`
	Phase string   `json:"phase,omitempty"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Time  *int64   `json:"time"`
	Price *float64 `json:"price"`
	From  *int64   `json:"from"`
	To    *int64   `json:"to"`
}

// located caches the last coordinate resolution the page sent with an
// event, so resolving the same pixel again needs no round trip.
type located struct {
	valid    bool
	x, y     float64
	time     int64
	hasTime  bool
	price    float64
	hasPrice bool
}

// Pane is one chart pane on the page. It implements surface.Surface.
type Pane struct {
	b    *Browser
	spec PaneSpec

	primary *Series

	mu       sync.Mutex
	data     []geometry.Point
	last     located
	clicks   surface.Handlers[surface.MouseEvent]
	moves    surface.Handlers[surface.MouseEvent]
	pointers surface.Handlers[surface.PointerEvent]
	captures surface.Handlers[surface.PointerEvent]
	ranges   surface.Handlers[*surface.Range]
}

// Series is a series handle; id 0 is the pane's primary series.
type Series struct {
	pane *Pane
	id   int
	kind surface.SeriesKind
}

func newPane(b *Browser, spec PaneSpec) *Pane {
	p := &Pane{b: b, spec: spec}
	p.primary = &Series{pane: p, id: 0, kind: surface.SeriesLine}
	return p
}

func (p *Pane) ID() string { return p.spec.ID }

func (p *Pane) CoordinateToTime(x float64) (int64, bool) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last.valid && last.x == x {
		return last.time, last.hasTime
	}
	var t *int64
	if err := p.b.call(&t, "coordinateToTime", p.spec.ID, x); err != nil {
		slog.Warn("cdpsurface coordinateToTime failed", "pane", p.spec.ID, "error", err)
		return 0, false
	}
	if t == nil {
		return 0, false
	}
	return *t, true
}

func (p *Pane) CoordinateToPrice(y float64) (float64, bool) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last.valid && last.y == y {
		return last.price, last.hasPrice
	}
	var v *float64
	if err := p.b.call(&v, "coordinateToPrice", p.spec.ID, y); err != nil {
		slog.Warn("cdpsurface coordinateToPrice failed", "pane", p.spec.ID, "error", err)
		return 0, false
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

func (p *Pane) AddSeries(kind surface.SeriesKind, style surface.Style) (surface.Series, error) {
	var id int
	if err := p.b.call(&id, "addSeries", p.spec.ID, kind, style); err != nil {
		return nil, fmt.Errorf("add series on %s: %w", p.spec.ID, err)
	}
	return &Series{pane: p, id: id, kind: kind}, nil
}

func (p *Pane) RemoveSeries(h surface.Series) error {
	s, ok := h.(*Series)
	if !ok || s.pane != p {
		return errForeignSeries
	}
	if s.id == 0 {
		return fmt.Errorf("cdpsurface: the primary series of %s cannot be removed", p.spec.ID)
	}
	if err := p.b.call(nil, "removeSeries", p.spec.ID, s.id); err != nil {
		return fmt.Errorf("remove series %d on %s: %w", s.id, p.spec.ID, err)
	}
	return nil
}

func (p *Pane) PrimarySeries() surface.Series { return p.primary }

func (p *Pane) PrimaryData() []geometry.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]geometry.Point(nil), p.data...)
}

// SetPrimaryData replaces the pane's own data series. Failures to push it
// to the page are logged; the cached copy still serves crosshair snapping.
func (p *Pane) SetPrimaryData(points []geometry.Point) {
	sorted := pageData(points)
	p.mu.Lock()
	p.data = sorted
	p.mu.Unlock()
	if err := p.b.call(nil, "setData", p.spec.ID, 0, sorted); err != nil {
		slog.Warn("cdpsurface set primary data failed", "pane", p.spec.ID, "points", len(sorted), "error", err)
	}
}

func (p *Pane) OnClick(fn func(surface.MouseEvent)) func() {
	p.mu.Lock()
	id := p.clicks.Add(fn)
	p.mu.Unlock()
	return func() { p.mu.Lock(); p.clicks.Remove(id); p.mu.Unlock() }
}

func (p *Pane) OnCrosshairMove(fn func(surface.MouseEvent)) func() {
	p.mu.Lock()
	id := p.moves.Add(fn)
	p.mu.Unlock()
	return func() { p.mu.Lock(); p.moves.Remove(id); p.mu.Unlock() }
}

func (p *Pane) OnPointer(fn func(surface.PointerEvent)) func() {
	p.mu.Lock()
	id := p.pointers.Add(fn)
	p.mu.Unlock()
	return func() { p.mu.Lock(); p.pointers.Remove(id); p.mu.Unlock() }
}

// CapturePointer asks the page to forward document pointer events until
// release is called.
func (p *Pane) CapturePointer(fn func(surface.PointerEvent)) (func(), error) {
	if err := p.b.call(nil, "capture", p.spec.ID, true); err != nil {
		return nil, fmt.Errorf("capture pointer on %s: %w", p.spec.ID, err)
	}
	p.mu.Lock()
	id := p.captures.Add(fn)
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.captures.Remove(id)
			p.mu.Unlock()
			if err := p.b.call(nil, "capture", p.spec.ID, false); err != nil {
				slog.Warn("cdpsurface release capture failed", "pane", p.spec.ID, "error", err)
			}
		})
	}, nil
}

func (p *Pane) SetCrosshairPosition(value float64, t int64, h surface.Series) error {
	sid := 0
	if s, ok := h.(*Series); ok && s.pane == p {
		sid = s.id
	}
	return p.b.call(nil, "setCrosshair", p.spec.ID, value, t, sid)
}

func (p *Pane) ClearCrosshair() error {
	return p.b.call(nil, "clearCrosshair", p.spec.ID)
}

func (p *Pane) TimeAxis() surface.TimeAxis { return (*timeAxis)(p) }

type timeAxis Pane

func (a *timeAxis) SetVisibleRange(r surface.Range) error {
	p := (*Pane)(a)
	return p.b.call(nil, "setVisibleRange", p.spec.ID, r.From, r.To)
}

func (a *timeAxis) OnVisibleRangeChange(fn func(*surface.Range)) func() {
	p := (*Pane)(a)
	p.mu.Lock()
	id := p.ranges.Add(fn)
	p.mu.Unlock()
	return func() { p.mu.Lock(); p.ranges.Remove(id); p.mu.Unlock() }
}

// RenderPNG writes a screenshot of the pane.
func (p *Pane) RenderPNG(w io.Writer) error {
	var clip clipRect
	if err := p.b.call(&clip, "rect", p.spec.ID); err != nil {
		return fmt.Errorf("pane rect %s: %w", p.spec.ID, err)
	}
	clip.Scale = 1

	p.b.mu.Lock()
	cdp, sessionID := p.b.cdp, p.b.sessionID
	p.b.mu.Unlock()
	if cdp == nil {
		return fmt.Errorf("screenshot %s: not connected", p.spec.ID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.b.cfg.EvalTimeout)
	defer cancel()
	data, err := cdp.captureScreenshot(ctx, sessionID, &clip)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	_, err = io.Copy(w, bytes.NewReader(raw))
	return err
}

func (s *Series) SetData(points []geometry.Point) error {
	return s.pane.b.call(nil, "setData", s.pane.spec.ID, s.id, pageData(points))
}

func (s *Series) SetOptions(style surface.Style) error {
	return s.pane.b.call(nil, "setOptions", s.pane.spec.ID, s.id, s.kind, style)
}

func (s *Series) SetMarkers(markers []surface.Marker) error {
	if markers == nil {
		markers = []surface.Marker{}
	}
	sorted := append([]surface.Marker(nil), markers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return s.pane.b.call(nil, "setMarkers", s.pane.spec.ID, s.id, sorted)
}

// pageData sorts points by time and keeps the last point per time; the
// page rejects unordered or repeated times.
func pageData(points []geometry.Point) []geometry.Point {
	sorted := geometry.SortByTime(points)
	out := make([]geometry.Point, 0, len(sorted))
	for _, pt := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == pt.Time {
			out[n-1] = pt
			continue
		}
		out = append(out, pt)
	}
	return out
}

// dispatch routes a page event to the registered handlers.
func (p *Pane) dispatch(ev pageEvent) {
	switch ev.Type {
	case "click", "crosshair":
		me := p.remember(ev)
		p.mu.Lock()
		var fns []func(surface.MouseEvent)
		if ev.Type == "click" {
			fns = p.clicks.Snapshot()
		} else {
			fns = p.moves.Snapshot()
		}
		p.mu.Unlock()
		for _, fn := range fns {
			fn(me)
		}
	case "leave":
		p.mu.Lock()
		fns := p.moves.Snapshot()
		p.mu.Unlock()
		for _, fn := range fns {
			fn(surface.MouseEvent{SurfaceID: p.spec.ID})
		}
	case "pointer", "capture":
		p.remember(ev)
		pe := surface.PointerEvent{SurfaceID: p.spec.ID, Phase: surface.PointerPhase(ev.Phase), X: ev.X, Y: ev.Y}
		p.mu.Lock()
		fns := p.captures.Snapshot()
		if ev.Type == "pointer" {
			fns = append(p.pointers.Snapshot(), fns...)
		}
		p.mu.Unlock()
		for _, fn := range fns {
			fn(pe)
		}
	case "range":
		var r *surface.Range
		if ev.From != nil && ev.To != nil {
			r = &surface.Range{From: *ev.From, To: *ev.To}
		}
		p.mu.Lock()
		fns := p.ranges.Snapshot()
		p.mu.Unlock()
		for _, fn := range fns {
			fn(r)
		}
	default:
		slog.Debug("cdpsurface unknown event type", "pane", p.spec.ID, "type", ev.Type)
	}
}

func (p *Pane) remember(ev pageEvent) surface.MouseEvent {
	loc := located{valid: true, x: ev.X, y: ev.Y}
	if ev.Time != nil {
		loc.time, loc.hasTime = *ev.Time, true
	}
	if ev.Price != nil {
		loc.price, loc.hasPrice = *ev.Price, true
	}
	p.mu.Lock()
	p.last = loc
	p.mu.Unlock()
	return surface.MouseEvent{SurfaceID: p.spec.ID, Time: loc.time, HasTime: loc.hasTime, X: ev.X, Y: ev.Y}
}
