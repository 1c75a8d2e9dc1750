package memsurface

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

func newTestSurface(echo bool) *Surface {
	s := New(Options{ID: "main", Width: 100, Height: 100, PriceMin: 0, PriceMax: 100, EchoProgrammatic: echo})
	var pts []geometry.Point
	for t := int64(0); t <= 100; t += 10 {
		pts = append(pts, geometry.Point{Time: t, Value: float64(t)})
	}
	s.SetPrimaryData(pts)
	return s
}

func TestCoordinateMapping(t *testing.T) {
	s := newTestSurface(false)
	tests := []struct {
		x    float64
		want int64
		ok   bool
	}{
		{x: 50, want: 50, ok: true},
		{x: 52, want: 50, ok: true},
		{x: 100, want: 100, ok: true},
		{x: -1, ok: false},
		{x: 101, ok: false},
	}
	for _, tt := range tests {
		got, ok := s.CoordinateToTime(tt.x)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Fatalf("CoordinateToTime(%v) = %d,%v; want %d,%v", tt.x, got, ok, tt.want, tt.ok)
		}
	}
	if v, ok := s.CoordinateToPrice(25); !ok || v != 75 {
		t.Fatalf("CoordinateToPrice(25) = %v,%v; want 75,true", v, ok)
	}
	if _, ok := s.CoordinateToPrice(200); ok {
		t.Fatalf("CoordinateToPrice(200) ok = true; want false")
	}
}

func TestCoordinateToTimeWithoutData(t *testing.T) {
	s := New(Options{ID: "empty"})
	if _, ok := s.CoordinateToTime(10); ok {
		t.Fatalf("CoordinateToTime() ok = true on empty surface; want false")
	}
}

func TestSeriesLifecycle(t *testing.T) {
	s := newTestSurface(false)
	h, err := s.AddSeries(surface.SeriesLine, surface.Style{Color: "#ff0000"})
	if err != nil {
		t.Fatalf("AddSeries() error = %v", err)
	}
	if err := h.SetData([]geometry.Point{{Time: 1, Value: 2}, {Time: 3, Value: 4}}); err != nil {
		t.Fatalf("SetData() error = %v", err)
	}
	got := s.Series()
	if len(got) != 1 || len(got[0].Data()) != 2 {
		t.Fatalf("Series() = %v; want one series with 2 points", got)
	}
	if err := s.RemoveSeries(h); err != nil {
		t.Fatalf("RemoveSeries() error = %v", err)
	}
	if len(s.Series()) != 0 || !got[0].Removed() {
		t.Fatalf("series still live after RemoveSeries")
	}
	other := New(Options{ID: "other"})
	oh, _ := other.AddSeries(surface.SeriesLine, surface.Style{})
	if err := s.RemoveSeries(oh); err == nil {
		t.Fatalf("RemoveSeries(foreign) error = nil; want error")
	}
}

func TestInputDelivery(t *testing.T) {
	s := newTestSurface(false)
	var clicks []surface.MouseEvent
	var pointers, captured []surface.PointerEvent
	unsubscribe := s.OnClick(func(ev surface.MouseEvent) { clicks = append(clicks, ev) })
	s.OnPointer(func(ev surface.PointerEvent) { pointers = append(pointers, ev) })

	s.Click(30, 10)
	if len(clicks) != 1 || !clicks[0].HasTime || clicks[0].Time != 30 || clicks[0].SurfaceID != "main" {
		t.Fatalf("clicks = %+v; want one click at time 30", clicks)
	}
	unsubscribe()
	s.Click(30, 10)
	if len(clicks) != 1 {
		t.Fatalf("clicks after unsubscribe = %d; want 1", len(clicks))
	}

	release, err := s.CapturePointer(func(ev surface.PointerEvent) { captured = append(captured, ev) })
	if err != nil {
		t.Fatalf("CapturePointer() error = %v", err)
	}
	s.Pointer(surface.PointerMove, 1, 1)
	s.DocumentPointer(surface.PointerUp, 500, 500)
	if len(pointers) != 1 || len(captured) != 2 {
		t.Fatalf("pointers=%d captured=%d; want 1 and 2", len(pointers), len(captured))
	}
	release()
	release()
	if s.Captured() != 0 {
		t.Fatalf("Captured() = %d; want 0", s.Captured())
	}
}

func TestProgrammaticEcho(t *testing.T) {
	for _, echo := range []bool{false, true} {
		s := newTestSurface(echo)
		var ranges int
		var moves int
		s.TimeAxis().OnVisibleRangeChange(func(*surface.Range) { ranges++ })
		s.OnCrosshairMove(func(surface.MouseEvent) { moves++ })
		if err := s.TimeAxis().SetVisibleRange(surface.Range{From: 10, To: 20}); err != nil {
			t.Fatalf("SetVisibleRange() error = %v", err)
		}
		if err := s.SetCrosshairPosition(5, 10, s.PrimarySeries()); err != nil {
			t.Fatalf("SetCrosshairPosition() error = %v", err)
		}
		want := 0
		if echo {
			want = 1
		}
		if ranges != want || moves != want {
			t.Fatalf("echo=%v: ranges=%d moves=%d; want %d", echo, ranges, moves, want)
		}
		if r, ok := s.VisibleRange(); !ok || r.From != 10 || r.To != 20 {
			t.Fatalf("VisibleRange() = %+v,%v; want {10 20},true", r, ok)
		}
		if c, ok := s.Crosshair(); !ok || c.Time != 10 || c.Value != 5 {
			t.Fatalf("Crosshair() = %+v,%v; want time 10 value 5", c, ok)
		}
	}
}

func TestRenderPNG(t *testing.T) {
	s := newTestSurface(false)
	h, _ := s.AddSeries(surface.SeriesDots, surface.Style{Color: "#00ff00"})
	_ = h.SetData([]geometry.Point{{Time: 20, Value: 20}})
	_ = h.SetMarkers([]surface.Marker{{Time: 20, Text: "A"}})
	var buf bytes.Buffer
	if err := s.RenderPNG(&buf); err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("image bounds = %v; want 100x100", b)
	}
}
