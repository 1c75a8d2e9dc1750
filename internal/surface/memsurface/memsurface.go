// Package memsurface is a headless chart surface. It maps pixels linearly
// onto the visible time range and a price range, keeps series in memory,
// and lets callers inject user input.
package memsurface

import (
	"errors"
	"math"
	"sync"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

var errForeignSeries = errors.New("memsurface: series does not belong to this surface")

// Options configures a Surface.
type Options struct {
	ID     string
	Width  float64
	Height float64
	// PriceMin/PriceMax fix the vertical scale; when equal the scale follows
	// the primary data.
	PriceMin float64
	PriceMax float64
	// EchoProgrammatic makes programmatic crosshair and range changes emit
	// events, like chart libraries that do not tell the two apart.
	EchoProgrammatic bool
}

// Crosshair is the programmatically set crosshair position.
type Crosshair struct {
	Time     int64
	Value    float64
	SeriesID int
}

// Surface is an in-memory surface.Surface.
type Surface struct {
	opts Options

	mu        sync.Mutex
	primary   *Series
	series    map[int]*Series
	nextID    int
	visible   *surface.Range
	crosshair *Crosshair

	clicks   surface.Handlers[surface.MouseEvent]
	moves    surface.Handlers[surface.MouseEvent]
	pointers surface.Handlers[surface.PointerEvent]
	captures surface.Handlers[surface.PointerEvent]
	ranges   surface.Handlers[*surface.Range]
}

// New returns an empty surface.
func New(opts Options) *Surface {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	s := &Surface{opts: opts, series: make(map[int]*Series)}
	s.primary = &Series{id: 0, owner: s, kind: surface.SeriesLine}
	return s
}

func (s *Surface) ID() string { return s.opts.ID }

// Size returns the pixel dimensions.
func (s *Surface) Size() (float64, float64) { return s.opts.Width, s.opts.Height }

// SetPrimaryData replaces the surface's own data series. The visible range
// follows the data unless one was set explicitly.
func (s *Surface) SetPrimaryData(points []geometry.Point) {
	sorted := geometry.SortByTime(points)
	s.mu.Lock()
	s.primary.data = sorted
	s.mu.Unlock()
}

func (s *Surface) PrimarySeries() surface.Series { return s.primary }

func (s *Surface) PrimaryData() []geometry.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geometry.Point(nil), s.primary.data...)
}

func (s *Surface) timeRangeLocked() (surface.Range, bool) {
	if s.visible != nil {
		return *s.visible, s.visible.To > s.visible.From
	}
	d := s.primary.data
	if len(d) < 2 {
		return surface.Range{}, false
	}
	return surface.Range{From: d[0].Time, To: d[len(d)-1].Time}, d[len(d)-1].Time > d[0].Time
}

func (s *Surface) priceRangeLocked() (float64, float64, bool) {
	if s.opts.PriceMax > s.opts.PriceMin {
		return s.opts.PriceMin, s.opts.PriceMax, true
	}
	if len(s.primary.data) == 0 {
		return 0, 0, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s.primary.data {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if hi <= lo {
		return lo - 1, hi + 1, true
	}
	return lo, hi, true
}

// CoordinateToTime maps x onto the visible range and snaps to the nearest
// primary bar when data is loaded.
func (s *Surface) CoordinateToTime(x float64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0 || x > s.opts.Width {
		return 0, false
	}
	r, ok := s.timeRangeLocked()
	if !ok {
		return 0, false
	}
	t := r.From + int64(math.Round(x/s.opts.Width*float64(r.To-r.From)))
	if p, _, ok := geometry.NearestByTime(s.primary.data, t); ok {
		return p.Time, true
	}
	return t, true
}

// CoordinateToPrice maps y (0 at the top) onto the price range.
func (s *Surface) CoordinateToPrice(y float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if y < 0 || y > s.opts.Height {
		return 0, false
	}
	lo, hi, ok := s.priceRangeLocked()
	if !ok {
		return 0, false
	}
	return hi - y/s.opts.Height*(hi-lo), true
}

// TimeToCoordinate is the inverse of CoordinateToTime without snapping.
func (s *Surface) TimeToCoordinate(t int64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.timeRangeLocked()
	if !ok {
		return 0, false
	}
	return float64(t-r.From) / float64(r.To-r.From) * s.opts.Width, true
}

// PriceToCoordinate is the inverse of CoordinateToPrice.
func (s *Surface) PriceToCoordinate(v float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi, ok := s.priceRangeLocked()
	if !ok {
		return 0, false
	}
	return (hi - v) / (hi - lo) * s.opts.Height, true
}

func (s *Surface) AddSeries(kind surface.SeriesKind, style surface.Style) (surface.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sr := &Series{id: s.nextID, owner: s, kind: kind, style: style}
	s.series[sr.id] = sr
	return sr, nil
}

func (s *Surface) RemoveSeries(h surface.Series) error {
	sr, ok := h.(*Series)
	if !ok || sr.owner != s {
		return errForeignSeries
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, sr.id)
	sr.removed = true
	return nil
}

// Series returns the live non-primary series ordered by creation.
func (s *Surface) Series() []*Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seriesLocked()
}

func (s *Surface) OnClick(fn func(surface.MouseEvent)) func() {
	s.mu.Lock()
	id := s.clicks.Add(fn)
	s.mu.Unlock()
	return func() { s.mu.Lock(); s.clicks.Remove(id); s.mu.Unlock() }
}

func (s *Surface) OnCrosshairMove(fn func(surface.MouseEvent)) func() {
	s.mu.Lock()
	id := s.moves.Add(fn)
	s.mu.Unlock()
	return func() { s.mu.Lock(); s.moves.Remove(id); s.mu.Unlock() }
}

func (s *Surface) OnPointer(fn func(surface.PointerEvent)) func() {
	s.mu.Lock()
	id := s.pointers.Add(fn)
	s.mu.Unlock()
	return func() { s.mu.Lock(); s.pointers.Remove(id); s.mu.Unlock() }
}

func (s *Surface) CapturePointer(fn func(surface.PointerEvent)) (func(), error) {
	s.mu.Lock()
	id := s.captures.Add(fn)
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { s.mu.Lock(); s.captures.Remove(id); s.mu.Unlock() })
	}, nil
}

// Captured reports how many document-level pointer captures are active.
func (s *Surface) Captured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures.Len()
}

func (s *Surface) SetCrosshairPosition(value float64, t int64, h surface.Series) error {
	sid := 0
	if sr, ok := h.(*Series); ok {
		sid = sr.id
	}
	s.mu.Lock()
	s.crosshair = &Crosshair{Time: t, Value: value, SeriesID: sid}
	echo := s.opts.EchoProgrammatic
	s.mu.Unlock()
	if echo {
		x, _ := s.TimeToCoordinate(t)
		y, _ := s.PriceToCoordinate(value)
		s.emitMove(surface.MouseEvent{SurfaceID: s.opts.ID, Time: t, HasTime: true, X: x, Y: y})
	}
	return nil
}

func (s *Surface) ClearCrosshair() error {
	s.mu.Lock()
	s.crosshair = nil
	s.mu.Unlock()
	return nil
}

// Crosshair returns the programmatic crosshair position, if any.
func (s *Surface) Crosshair() (Crosshair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crosshair == nil {
		return Crosshair{}, false
	}
	return *s.crosshair, true
}

// VisibleRange returns the explicitly set visible range.
func (s *Surface) VisibleRange() (surface.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == nil {
		return surface.Range{}, false
	}
	return *s.visible, true
}

func (s *Surface) TimeAxis() surface.TimeAxis { return (*timeAxis)(s) }

type timeAxis Surface

func (a *timeAxis) SetVisibleRange(r surface.Range) error {
	s := (*Surface)(a)
	s.mu.Lock()
	s.visible = &r
	echo := s.opts.EchoProgrammatic
	s.mu.Unlock()
	if echo {
		s.emitRange(&r)
	}
	return nil
}

func (a *timeAxis) OnVisibleRangeChange(fn func(*surface.Range)) func() {
	s := (*Surface)(a)
	s.mu.Lock()
	id := s.ranges.Add(fn)
	s.mu.Unlock()
	return func() { s.mu.Lock(); s.ranges.Remove(id); s.mu.Unlock() }
}

// Series is an in-memory series.
type Series struct {
	id      int
	owner   *Surface
	kind    surface.SeriesKind
	style   surface.Style
	data    []geometry.Point
	markers []surface.Marker
	removed bool
}

func (sr *Series) SetData(points []geometry.Point) error {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	sr.data = append([]geometry.Point(nil), points...)
	return nil
}

func (sr *Series) SetOptions(style surface.Style) error {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	sr.style = style
	return nil
}

func (sr *Series) SetMarkers(markers []surface.Marker) error {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	sr.markers = append([]surface.Marker(nil), markers...)
	return nil
}

func (sr *Series) ID() int { return sr.id }

func (sr *Series) Kind() surface.SeriesKind { return sr.kind }

func (sr *Series) Style() surface.Style {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	return sr.style
}

func (sr *Series) Data() []geometry.Point {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	return append([]geometry.Point(nil), sr.data...)
}

func (sr *Series) Markers() []surface.Marker {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	return append([]surface.Marker(nil), sr.markers...)
}

// Removed reports whether the series was removed from its surface.
func (sr *Series) Removed() bool {
	sr.owner.mu.Lock()
	defer sr.owner.mu.Unlock()
	return sr.removed
}
