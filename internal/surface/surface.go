// Package surface defines the contract between the annotation core and a
// chart rendering surface (one pane of the multi-pane chart).
package surface

import "github.com/dgnsrekt/tv_annotator/internal/geometry"

// SeriesKind selects how a series is drawn.
type SeriesKind string

const (
	// SeriesLine connects points with a line.
	SeriesLine SeriesKind = "line"
	// SeriesDots draws points without connecting them.
	SeriesDots SeriesKind = "dots"
)

// Style holds the visual options of a series.
type Style struct {
	Color       string  `json:"color,omitempty" yaml:"color,omitempty"`
	LineWidth   float64 `json:"lineWidth,omitempty" yaml:"line_width,omitempty"`
	LineStyle   int     `json:"lineStyle,omitempty" yaml:"line_style,omitempty"`
	PointRadius float64 `json:"pointRadius,omitempty" yaml:"point_radius,omitempty"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty"`
}

// Marker is a text label attached to a series at a time.
type Marker struct {
	Time  int64  `json:"time"`
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Range is a visible time range.
type Range struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// PointerPhase distinguishes pointer events from the chart container.
type PointerPhase string

const (
	PointerDown PointerPhase = "down"
	PointerMove PointerPhase = "move"
	PointerUp   PointerPhase = "up"
)

// MouseEvent is a click or crosshair move on a surface. HasTime is false
// when the pixel position does not map to a bar (chart edge, no data).
type MouseEvent struct {
	SurfaceID string
	Time      int64
	HasTime   bool
	X, Y      float64
}

// PointerEvent is a raw pointer event in surface pixel coordinates.
type PointerEvent struct {
	SurfaceID string
	Phase     PointerPhase
	X, Y      float64
}

// Series is a handle to one plotted series.
type Series interface {
	SetData(points []geometry.Point) error
	SetOptions(style Style) error
	SetMarkers(markers []Marker) error
}

// TimeAxis is the time scale of a surface.
type TimeAxis interface {
	SetVisibleRange(r Range) error
	OnVisibleRangeChange(fn func(r *Range)) (unsubscribe func())
}

// Surface is one chart pane. Handlers registered with On* are invoked on
// whatever goroutine the implementation delivers events on; callers that
// need a single writer must hand the event off themselves.
type Surface interface {
	ID() string

	CoordinateToTime(x float64) (int64, bool)
	CoordinateToPrice(y float64) (float64, bool)

	AddSeries(kind SeriesKind, style Style) (Series, error)
	RemoveSeries(s Series) error

	// PrimarySeries is the surface's own data series; PrimaryData its points.
	PrimarySeries() Series
	PrimaryData() []geometry.Point

	OnClick(fn func(MouseEvent)) (unsubscribe func())
	OnCrosshairMove(fn func(MouseEvent)) (unsubscribe func())
	// OnPointer delivers pointer events that happen over the chart container.
	OnPointer(fn func(PointerEvent)) (unsubscribe func())
	// CapturePointer delivers pointer moves and ups from the whole document
	// until release is called.
	CapturePointer(fn func(PointerEvent)) (release func(), err error)

	SetCrosshairPosition(value float64, t int64, s Series) error
	ClearCrosshair() error

	// TimeAxis returns nil when the surface has no time scale.
	TimeAxis() TimeAxis
}
