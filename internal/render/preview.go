package render

import (
	"slices"

	"github.com/dgnsrekt/tv_annotator/internal/engine"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

// Previewer keeps at most one series per preview kind: the segment preview,
// the six-point line and the six-point dots.
type Previewer struct {
	surf    surface.Surface
	styles  Styles
	onError ErrorFunc

	segment previewSlot
	sixLine previewSlot
	dots    previewSlot
}

type previewSlot struct {
	series  surface.Series
	data    []geometry.Point
	markers []surface.Marker
}

// NewPreviewer returns a Previewer drawing on surf. A nil onError logs.
func NewPreviewer(surf surface.Surface, styles Styles, onError ErrorFunc) *Previewer {
	if onError == nil {
		onError = logError
	}
	return &Previewer{surf: surf, styles: styles, onError: onError}
}

// Render reconciles the preview series with g.
func (p *Previewer) Render(g engine.PreviewGeometry) {
	p.reconcile(&p.segment, surface.SeriesLine, p.styles.Preview, g.Segment, nil)
	p.reconcile(&p.sixLine, surface.SeriesLine, p.styles.Preview, g.SixLine, nil)

	var dots []geometry.Point
	var markers []surface.Marker
	for _, d := range g.Dots {
		dots = append(dots, d.Point)
		markers = append(markers, surface.Marker{Time: d.Time, Text: d.Label, Color: p.styles.PreviewDot.Color})
	}
	p.reconcile(&p.dots, surface.SeriesDots, p.styles.PreviewDot, dots, markers)
}

// Clear removes every preview series.
func (p *Previewer) Clear() { p.Render(engine.PreviewGeometry{}) }

// Active reports which preview series currently exist.
func (p *Previewer) Active() (segment, sixLine, dots bool) {
	return p.segment.series != nil, p.sixLine.series != nil, p.dots.series != nil
}

func (p *Previewer) reconcile(slot *previewSlot, kind surface.SeriesKind, style surface.Style, data []geometry.Point, markers []surface.Marker) {
	if len(data) == 0 {
		if slot.series != nil {
			if err := p.surf.RemoveSeries(slot.series); err != nil {
				p.onError("remove_series", err)
			}
		}
		*slot = previewSlot{}
		return
	}
	if slot.series == nil {
		s, err := p.surf.AddSeries(kind, style)
		if err != nil {
			p.onError("add_series", err)
			return
		}
		slot.series = s
		slot.data = nil
		slot.markers = nil
	}
	if !slices.Equal(slot.data, data) {
		if err := slot.series.SetData(data); err != nil {
			p.onError("set_data", err)
		}
		slot.data = append([]geometry.Point(nil), data...)
	}
	if !slices.Equal(slot.markers, markers) {
		if err := slot.series.SetMarkers(markers); err != nil {
			p.onError("set_markers", err)
		}
		slot.markers = append([]surface.Marker(nil), markers...)
	}
}
