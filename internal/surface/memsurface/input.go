package memsurface

import "github.com/dgnsrekt/tv_annotator/internal/surface"

// Click injects a click at pixel (x, y).
func (s *Surface) Click(x, y float64) {
	ev := s.mouseEvent(x, y)
	s.mu.Lock()
	fns := s.clicks.Snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// MoveCrosshair injects a crosshair move at pixel (x, y).
func (s *Surface) MoveCrosshair(x, y float64) {
	s.emitMove(s.mouseEvent(x, y))
}

// Leave injects a crosshair move that left the plot area.
func (s *Surface) Leave() {
	s.emitMove(surface.MouseEvent{SurfaceID: s.opts.ID})
}

// Pointer injects a pointer event over the chart container. Active captures
// see it too, as document listeners do in a browser.
func (s *Surface) Pointer(phase surface.PointerPhase, x, y float64) {
	ev := surface.PointerEvent{SurfaceID: s.opts.ID, Phase: phase, X: x, Y: y}
	s.mu.Lock()
	fns := append(s.pointers.Snapshot(), s.captures.Snapshot()...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// DocumentPointer injects a pointer event outside the chart container. Only
// active captures receive it.
func (s *Surface) DocumentPointer(phase surface.PointerPhase, x, y float64) {
	ev := surface.PointerEvent{SurfaceID: s.opts.ID, Phase: phase, X: x, Y: y}
	s.mu.Lock()
	fns := s.captures.Snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ScrollTo sets the visible range as a user pan would and notifies
// subscribers. A nil range notifies with nil and keeps the current range.
func (s *Surface) ScrollTo(r *surface.Range) {
	if r != nil {
		cp := *r
		s.mu.Lock()
		s.visible = &cp
		s.mu.Unlock()
		r = &cp
	}
	s.emitRange(r)
}

func (s *Surface) mouseEvent(x, y float64) surface.MouseEvent {
	ev := surface.MouseEvent{SurfaceID: s.opts.ID, X: x, Y: y}
	ev.Time, ev.HasTime = s.CoordinateToTime(x)
	return ev
}

func (s *Surface) emitMove(ev surface.MouseEvent) {
	s.mu.Lock()
	fns := s.moves.Snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Surface) emitRange(r *surface.Range) {
	s.mu.Lock()
	fns := s.ranges.Snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}
}
