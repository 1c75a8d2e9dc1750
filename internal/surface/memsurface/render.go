package memsurface

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/fogleman/gg"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

const defaultSeriesColor = "#2962ff"

// RenderPNG draws the surface (primary data, every series with its markers
// and the crosshair) and writes it as PNG.
func (s *Surface) RenderPNG(w io.Writer) error {
	width, height := int(s.opts.Width), int(s.opts.Height)
	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	s.mu.Lock()
	r, okT := s.timeRangeLocked()
	lo, hi, okP := s.priceRangeLocked()
	primary := append([]geometry.Point(nil), s.primary.data...)
	type snap struct {
		kind    surface.SeriesKind
		style   surface.Style
		data    []geometry.Point
		markers []surface.Marker
	}
	var series []snap
	for _, sr := range s.seriesLocked() {
		series = append(series, snap{sr.kind, sr.style, append([]geometry.Point(nil), sr.data...), append([]surface.Marker(nil), sr.markers...)})
	}
	var cross *Crosshair
	if s.crosshair != nil {
		c := *s.crosshair
		cross = &c
	}
	s.mu.Unlock()

	if !okT || !okP {
		return dc.EncodePNG(w)
	}
	px := func(p geometry.Point) (float64, float64) {
		x := float64(p.Time-r.From) / float64(r.To-r.From) * s.opts.Width
		y := (hi - p.Value) / (hi - lo) * s.opts.Height
		return x, y
	}

	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(1)
	strokePath(dc, primary, px)

	for _, sr := range series {
		setColor(dc, sr.style.Color)
		switch sr.kind {
		case surface.SeriesDots:
			radius := sr.style.PointRadius
			if radius <= 0 {
				radius = 3
			}
			for _, p := range sr.data {
				x, y := px(p)
				dc.DrawCircle(x, y, radius)
				dc.Fill()
			}
		default:
			lw := sr.style.LineWidth
			if lw <= 0 {
				lw = 1
			}
			dc.SetLineWidth(lw)
			if sr.style.LineStyle != 0 {
				dc.SetDash(4, 4)
			}
			strokePath(dc, sr.data, px)
			dc.SetDash()
		}
		for _, m := range sr.markers {
			p, _, ok := geometry.NearestByTime(sr.data, m.Time)
			if !ok {
				continue
			}
			x, y := px(p)
			dc.DrawStringAnchored(m.Text, x, y-6, 0.5, 1)
		}
	}

	if cross != nil {
		x, y := px(geometry.Point{Time: cross.Time, Value: cross.Value})
		dc.SetRGBA(0, 0, 0, 0.4)
		dc.SetLineWidth(1)
		dc.DrawLine(x, 0, x, s.opts.Height)
		dc.DrawLine(0, y, s.opts.Width, y)
		dc.Stroke()
	}
	return dc.EncodePNG(w)
}

func (s *Surface) seriesLocked() []*Series {
	out := make([]*Series, 0, len(s.series))
	for id := 1; id <= s.nextID; id++ {
		if sr, ok := s.series[id]; ok {
			out = append(out, sr)
		}
	}
	return out
}

func strokePath(dc *gg.Context, pts []geometry.Point, px func(geometry.Point) (float64, float64)) {
	if len(pts) < 2 {
		return
	}
	x, y := px(pts[0])
	dc.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = px(p)
		dc.LineTo(x, y)
	}
	dc.Stroke()
}

func setColor(dc *gg.Context, hex string) {
	if hex == "" || !strings.HasPrefix(hex, "#") {
		hex = defaultSeriesColor
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		dc.SetHexColor(defaultSeriesColor)
		return
	}
	dc.SetRGB255(r, g, b)
}
