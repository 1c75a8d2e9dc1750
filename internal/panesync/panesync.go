// Package panesync keeps the crosshair and visible range of several chart
// panes aligned.
//
// A Synchronizer is not safe for concurrent use. Its owner forwards pane
// events into it from a single goroutine.
package panesync

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

// DefaultEchoWindow bounds how long a programmatic set waits for its echo.
const DefaultEchoWindow = 500 * time.Millisecond

type echoKind int

const (
	echoCrosshair echoKind = iota
	echoLeave
	echoRange
)

type echo struct {
	kind  echoKind
	time  int64
	rng   surface.Range
	until time.Time
}

type pane struct {
	surf    surface.Surface
	pending []echo
	last    *surface.Range
}

// Synchronizer fans crosshair and range changes from one pane out to the
// others.
type Synchronizer struct {
	panes      []*pane
	byID       map[string]*pane
	echoWindow time.Duration
	now        func() time.Time
	onError    func(op string, err error)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithEchoWindow sets how long an expected echo stays armed.
func WithEchoWindow(d time.Duration) Option {
	return func(s *Synchronizer) { s.echoWindow = d }
}

// WithErrorFunc receives surface failures.
func WithErrorFunc(fn func(op string, err error)) Option {
	return func(s *Synchronizer) { s.onError = fn }
}

func withClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// New returns an empty Synchronizer.
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		byID:       make(map[string]*pane),
		echoWindow: DefaultEchoWindow,
		now:        time.Now,
		onError: func(op string, err error) {
			slog.Warn("pane sync failed", "op", op, "error", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a pane. Registering the same id twice replaces the pane.
func (s *Synchronizer) Register(surf surface.Surface) {
	p := &pane{surf: surf}
	if old, ok := s.byID[surf.ID()]; ok {
		for i, q := range s.panes {
			if q == old {
				s.panes[i] = p
			}
		}
	} else {
		s.panes = append(s.panes, p)
	}
	s.byID[surf.ID()] = p
}

// Panes returns the registered surfaces in registration order.
func (s *Synchronizer) Panes() []surface.Surface {
	out := make([]surface.Surface, len(s.panes))
	for i, p := range s.panes {
		out[i] = p.surf
	}
	return out
}

// CrosshairMoved handles a crosshair move on ev.SurfaceID. Every other pane's
// crosshair is placed on the point of its primary series nearest in time;
// a move without a time clears them. It reports whether the event was
// propagated, i.e. not an echo of an earlier programmatic set.
func (s *Synchronizer) CrosshairMoved(ev surface.MouseEvent) bool {
	src, ok := s.byID[ev.SurfaceID]
	if !ok {
		return false
	}
	if s.consumeEcho(src, func(e echo) bool {
		if ev.HasTime {
			return e.kind == echoCrosshair && e.time == ev.Time
		}
		return e.kind == echoLeave
	}) {
		return false
	}
	for _, p := range s.panes {
		if p == src {
			continue
		}
		if !ev.HasTime {
			s.arm(p, echo{kind: echoLeave})
			if err := p.surf.ClearCrosshair(); err != nil {
				s.onError("clear_crosshair", err)
			}
			continue
		}
		target, _, found := geometry.NearestByTime(p.surf.PrimaryData(), ev.Time)
		if !found {
			continue
		}
		s.arm(p, echo{kind: echoCrosshair, time: target.Time})
		if err := p.surf.SetCrosshairPosition(target.Value, target.Time, p.surf.PrimarySeries()); err != nil {
			s.onError("set_crosshair", err)
		}
	}
	return true
}

// RangeChanged handles a visible-range change on surface id. A nil range is
// ignored, as are panes without a time axis.
func (s *Synchronizer) RangeChanged(id string, r *surface.Range) bool {
	src, ok := s.byID[id]
	if !ok || r == nil {
		return false
	}
	rng := *r
	if s.consumeEcho(src, func(e echo) bool { return e.kind == echoRange && e.rng == rng }) {
		src.last = &rng
		return false
	}
	src.last = &rng
	for _, p := range s.panes {
		if p == src {
			continue
		}
		if p.last != nil && *p.last == rng {
			continue
		}
		axis := p.surf.TimeAxis()
		if axis == nil {
			continue
		}
		s.arm(p, echo{kind: echoRange, rng: rng})
		if err := axis.SetVisibleRange(rng); err != nil {
			s.onError("set_visible_range", err)
			continue
		}
		p.last = &rng
	}
	return true
}

// arm records an expected echo on p, replacing any armed echo of the same
// family. Callers arm before issuing the set since some surfaces echo
// synchronously.
func (s *Synchronizer) arm(p *pane, e echo) {
	now := s.now()
	e.until = now.Add(s.echoWindow)
	kept := p.pending[:0]
	for _, old := range p.pending {
		if family(old.kind) != family(e.kind) && now.Before(old.until) {
			kept = append(kept, old)
		}
	}
	p.pending = append(kept, e)
}

func family(k echoKind) echoKind {
	if k == echoLeave {
		return echoCrosshair
	}
	return k
}

// consumeEcho drops expired expectations and removes the first one that
// matches.
func (s *Synchronizer) consumeEcho(p *pane, match func(echo) bool) bool {
	now := s.now()
	kept := p.pending[:0]
	hit := false
	for _, e := range p.pending {
		if !now.Before(e.until) {
			continue
		}
		if !hit && match(e) {
			hit = true
			continue
		}
		kept = append(kept, e)
	}
	p.pending = kept
	return hit
}
