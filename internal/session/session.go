// Package session runs one annotation session per instrument. A single
// goroutine (Run) owns the input machine, the renderers and the pane
// synchronizer; surface callbacks and commands reach it through a mailbox.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/engine"
	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/panesync"
	"github.com/dgnsrekt/tv_annotator/internal/render"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

// TopicState is the relay topic state snapshots are published on.
const TopicState = "state"

// Observer is notified of session activity. Implementations must not block.
type Observer interface {
	EventApplied(name string, d time.Duration)
	Effect(kind string)
	RenderError(op string)
	Synced(kind string, propagated bool)
	Annotations(n int)
}

// Publisher fans snapshots out to stream subscribers.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

type nopObserver struct{}

func (nopObserver) EventApplied(string, time.Duration) {}
func (nopObserver) Effect(string)                      {}
func (nopObserver) RenderError(string)                 {}
func (nopObserver) Synced(string, bool)                {}
func (nopObserver) Annotations(int)                    {}

// Config configures a Session.
type Config struct {
	Symbol     string
	Thresholds engine.Thresholds
	Styles     render.Styles
	EchoWindow time.Duration
}

// Option customises a Session.
type Option func(*Session)

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.obs = o }
}

// WithPublisher adds a destination for state snapshots. It may be given
// more than once.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.pubs = append(s.pubs, p) }
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	SessionID   string                  `json:"session_id"`
	Symbol      string                  `json:"symbol"`
	Mode        engine.Mode             `json:"mode"`
	Phase       engine.Phase            `json:"phase"`
	Selected    int                     `json:"selected"`
	Endpoint    annotation.Endpoint     `json:"endpoint,omitempty"`
	Buffer      []geometry.Point        `json:"buffer"`
	Hover       *geometry.Point         `json:"hover,omitempty"`
	Preview     engine.PreviewGeometry  `json:"preview"`
	Annotations []annotation.Annotation `json:"annotations"`
}

// Session coordinates the main surface (where annotations live) with the
// secondary panes.
type Session struct {
	main     surface.Surface
	panes    []surface.Surface
	surfaces map[string]surface.Surface
	cfg      Config
	obs      Observer
	pubs     []Publisher

	inbox   *mailbox
	done    chan struct{}
	runOnce sync.Once

	// owned by the Run goroutine
	id        string
	symbol    string
	machine   *engine.Machine
	committer *render.Committer
	previewer *render.Previewer
	sync      *panesync.Synchronizer
	release   func()
	unsubs    []func()
	lastKey   stateKey
}

type stateKey struct {
	mode     engine.Mode
	phase    engine.Phase
	selected int
	endpoint annotation.Endpoint
	buffer   int
}

// New builds a session. main receives annotation input and rendering; every
// surface in panes (main may be included) takes part in crosshair and range
// synchronisation.
func New(main surface.Surface, panes []surface.Surface, cfg Config, opts ...Option) *Session {
	s := &Session{
		main:     main,
		cfg:      cfg,
		obs:      nopObserver{},
		surfaces: map[string]surface.Surface{main.ID(): main},
		inbox:    newMailbox(),
		done:     make(chan struct{}),
		id:       uuid.NewString(),
		symbol:   cfg.Symbol,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.panes = append(s.panes, main)
	for _, p := range panes {
		if p.ID() == main.ID() {
			continue
		}
		s.panes = append(s.panes, p)
		s.surfaces[p.ID()] = p
	}

	onError := func(op string, err error) {
		slog.Warn("surface call failed", "op", op, "error", err)
		s.obs.RenderError(op)
	}
	s.machine = engine.NewMachine(cfg.Thresholds)
	s.committer = render.NewCommitter(main, cfg.Styles, onError)
	s.previewer = render.NewPreviewer(main, cfg.Styles, onError)
	syncOpts := []panesync.Option{panesync.WithErrorFunc(onError)}
	if cfg.EchoWindow > 0 {
		syncOpts = append(syncOpts, panesync.WithEchoWindow(cfg.EchoWindow))
	}
	s.sync = panesync.New(syncOpts...)
	for _, p := range s.panes {
		s.sync.Register(p)
	}
	s.lastKey = keyOf(s.machine.State())
	// Input arriving before Run waits in the inbox.
	s.subscribe()
	return s
}

// Surfaces returns every surface of the session, main first.
func (s *Session) Surfaces() []surface.Surface {
	return append([]surface.Surface(nil), s.panes...)
}

// Surface looks a surface up by id.
func (s *Session) Surface(id string) (surface.Surface, bool) {
	sf, ok := s.surfaces[id]
	return sf, ok
}

// Run processes the mailbox until ctx is done, then detaches from the
// surfaces. It returns nil on cancellation.
func (s *Session) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("session: Run called twice")
	}
	defer close(s.done)
	defer s.shutdown()

	slog.Info("session started", "session_id", s.id, "symbol", s.symbol, "surfaces", len(s.panes))
	for {
		select {
		case <-ctx.Done():
			for _, fn := range s.inbox.drain() {
				fn()
			}
			slog.Info("session stopped", "session_id", s.id)
			return nil
		case <-s.inbox.signal:
			for _, fn := range s.inbox.drain() {
				fn()
			}
		}
	}
}

// Do runs fn on the session goroutine and waits for it.
func (s *Session) Do(ctx context.Context, fn func()) error {
	select {
	case <-s.done:
		return errcode.New(errcode.SessionClosed, "session is not running", nil)
	default:
	}
	finished := make(chan struct{})
	s.inbox.post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-s.done:
		select {
		case <-finished:
			return nil
		default:
		}
		return errcode.New(errcode.SessionClosed, "session stopped", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) subscribe() {
	s.unsubs = append(s.unsubs,
		s.main.OnClick(func(ev surface.MouseEvent) {
			s.inbox.post(func() { s.handleClick(ev) })
		}),
		s.main.OnPointer(func(ev surface.PointerEvent) {
			s.inbox.post(func() { s.handlePointer(ev, false) })
		}),
	)
	for _, p := range s.panes {
		id := p.ID()
		s.unsubs = append(s.unsubs, p.OnCrosshairMove(func(ev surface.MouseEvent) {
			s.inbox.post(func() { s.handleCrosshair(ev) })
		}))
		if axis := p.TimeAxis(); axis != nil {
			s.unsubs = append(s.unsubs, axis.OnVisibleRangeChange(func(r *surface.Range) {
				var cp *surface.Range
				if r != nil {
					v := *r
					cp = &v
				}
				s.inbox.post(func() { s.handleRange(id, cp) })
			}))
		}
	}
}

func (s *Session) shutdown() {
	s.releaseCapture()
	for _, fn := range s.unsubs {
		fn()
	}
	s.unsubs = nil
}

func (s *Session) resolve(x, y float64) (geometry.Point, bool) {
	t, ok := s.main.CoordinateToTime(x)
	if !ok {
		return geometry.Point{}, false
	}
	v, ok := s.main.CoordinateToPrice(y)
	if !ok {
		return geometry.Point{}, false
	}
	return geometry.Point{Time: t, Value: v}, true
}

func (s *Session) handleClick(ev surface.MouseEvent) {
	if !ev.HasTime {
		slog.Debug("click ignored: no time", "x", ev.X, "y", ev.Y)
		return
	}
	v, ok := s.main.CoordinateToPrice(ev.Y)
	if !ok {
		slog.Debug("click ignored: no price", "x", ev.X, "y", ev.Y)
		return
	}
	s.apply(engine.Click{At: geometry.Point{Time: ev.Time, Value: v}})
}

// handlePointer routes container and captured pointer events. While a
// capture is active the document listener sees every move, so container
// moves and ups are dropped to avoid applying them twice.
func (s *Session) handlePointer(ev surface.PointerEvent, captured bool) {
	if !captured && s.release != nil && ev.Phase != surface.PointerDown {
		return
	}
	if ev.Phase == surface.PointerUp {
		s.apply(engine.PointerUp{})
		return
	}
	p, ok := s.resolve(ev.X, ev.Y)
	if !ok {
		slog.Debug("pointer ignored: outside plot", "phase", ev.Phase, "x", ev.X, "y", ev.Y)
		return
	}
	switch ev.Phase {
	case surface.PointerDown:
		s.apply(engine.PointerDown{At: p})
	case surface.PointerMove:
		if s.machine.State().Drag.Kind == engine.DragNone {
			return
		}
		s.apply(engine.PointerMove{At: p})
	}
}

func (s *Session) handleCrosshair(ev surface.MouseEvent) {
	propagated := s.sync.CrosshairMoved(ev)
	s.obs.Synced("crosshair", propagated)
	if !propagated || ev.SurfaceID != s.main.ID() || !ev.HasTime {
		return
	}
	if s.machine.State().Drag.Kind != engine.DragNone {
		return
	}
	v, ok := s.main.CoordinateToPrice(ev.Y)
	if !ok {
		return
	}
	s.apply(engine.PointerMove{At: geometry.Point{Time: ev.Time, Value: v}})
}

func (s *Session) handleRange(id string, r *surface.Range) {
	s.obs.Synced("range", s.sync.RangeChanged(id, r))
}

func (s *Session) apply(ev engine.Event) (engine.State, []engine.Effect) {
	start := time.Now()
	st, fx := s.machine.Apply(ev)
	for _, e := range fx {
		s.obs.Effect(e.Kind.String())
		switch e.Kind {
		case engine.EffectDeleted:
			s.committer.Remove(e.Index)
		case engine.EffectCleared:
			s.committer.Clear()
		case engine.EffectCaptureStart:
			s.startCapture()
		case engine.EffectCaptureEnd:
			s.releaseCapture()
		case engine.EffectRejected:
			slog.Debug("input rejected", "event", engine.EventName(ev), "reason", e.Reason)
		}
	}
	anns := s.machine.Annotations()
	s.committer.Sync(anns)
	s.previewer.Render(engine.Preview(st))
	s.obs.EventApplied(engine.EventName(ev), time.Since(start))
	s.obs.Annotations(len(anns))

	key := keyOf(st)
	if len(fx) > 0 || key != s.lastKey {
		s.lastKey = key
		s.publish(st, anns)
	}
	return st, fx
}

func (s *Session) startCapture() {
	if s.release != nil {
		return
	}
	release, err := s.main.CapturePointer(func(ev surface.PointerEvent) {
		s.inbox.post(func() { s.handlePointer(ev, true) })
	})
	if err != nil {
		slog.Warn("pointer capture failed", "error", err)
		s.obs.RenderError("capture_pointer")
		return
	}
	s.release = release
}

func (s *Session) releaseCapture() {
	if s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

func (s *Session) snapshot(st engine.State, anns []annotation.Annotation) Snapshot {
	buf := st.Buffer
	if buf == nil {
		buf = []geometry.Point{}
	}
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	return Snapshot{
		SessionID:   s.id,
		Symbol:      s.symbol,
		Mode:        st.Mode,
		Phase:       st.Phase(),
		Selected:    st.Selected,
		Endpoint:    st.Endpoint,
		Buffer:      buf,
		Hover:       st.Hover,
		Preview:     engine.Preview(st),
		Annotations: anns,
	}
}

func (s *Session) publish(st engine.State, anns []annotation.Annotation) {
	if len(s.pubs) == 0 {
		return
	}
	snap := s.snapshot(st, anns)
	for _, p := range s.pubs {
		if err := p.PublishJSON(TopicState, snap); err != nil {
			slog.Warn("publish state failed", "error", err)
		}
	}
}

func keyOf(st engine.State) stateKey {
	return stateKey{mode: st.Mode, phase: st.Phase(), selected: st.Selected, endpoint: st.Endpoint, buffer: len(st.Buffer)}
}
