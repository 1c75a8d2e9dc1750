package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/engine"
	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/session"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

// Injector is implemented by surfaces that accept synthetic user input.
type Injector interface {
	Click(x, y float64)
	MoveCrosshair(x, y float64)
	Leave()
	Pointer(phase surface.PointerPhase, x, y float64)
	DocumentPointer(phase surface.PointerPhase, x, y float64)
	ScrollTo(r *surface.Range)
}

// DataLoader is implemented by surfaces whose primary series can be loaded
// from outside.
type DataLoader interface {
	SetPrimaryData(points []geometry.Point)
}

// PNGRenderer is implemented by surfaces that can rasterise themselves.
type PNGRenderer interface {
	RenderPNG(w io.Writer) error
}

// Event types accepted by InjectEvent.
const (
	EventClick             = "click"
	EventCrosshair         = "crosshair"
	EventLeave             = "leave"
	EventPointerDown       = "pointer_down"
	EventPointerMove       = "pointer_move"
	EventPointerUp         = "pointer_up"
	EventDocumentMove      = "document_pointer_move"
	EventDocumentUp        = "document_pointer_up"
	EventVisibleRange      = "visible_range"
	EventClearVisibleRange = "clear_visible_range"
)

// SurfaceEvent is synthetic input for a headless surface. X/Y are pixels;
// From/To are used by visible_range.
type SurfaceEvent struct {
	Type string  `json:"type" enum:"click,crosshair,leave,pointer_down,pointer_move,pointer_up,document_pointer_move,document_pointer_up,visible_range,clear_visible_range"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	From int64   `json:"from,omitempty"`
	To   int64   `json:"to,omitempty"`
}

// SurfaceInfo describes one chart surface.
type SurfaceInfo struct {
	ID         string `json:"id"`
	Main       bool   `json:"main"`
	Injectable bool   `json:"injectable"`
	Loadable   bool   `json:"loadable"`
	Renderable bool   `json:"renderable"`
}

// Service wraps annotation session operations with validation.
type Service struct {
	sess  *session.Session
	snaps SnapshotStore
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithSnapshots enables the snapshot operations.
func WithSnapshots(store SnapshotStore) ServiceOption {
	return func(s *Service) { s.snaps = store }
}

func NewService(sess *session.Session, opts ...ServiceOption) *Service {
	s := &Service{sess: sess}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &errcode.CodedError{Code: errcode.Validation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) State(ctx context.Context) (session.Snapshot, error) {
	return s.sess.Snapshot(ctx)
}

func (s *Service) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	anns, err := s.sess.Annotations(ctx)
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	return anns, err
}

// ToggleMode toggles an authoring mode (trendline, horizontal, sixpoint).
func (s *Service) ToggleMode(ctx context.Context, mode string) (session.Result, error) {
	if err := s.requireNonEmpty(mode, "mode"); err != nil {
		return session.Result{}, err
	}
	m, ok := engine.ParseMode(strings.ToLower(strings.TrimSpace(mode)))
	if !ok {
		return session.Result{}, &errcode.CodedError{Code: errcode.Validation, Message: fmt.Sprintf("mode must be one of trendline, horizontal, sixpoint (got %q)", mode)}
	}
	return s.sess.ToggleMode(ctx, m)
}

func (s *Service) Reset(ctx context.Context) (session.Result, error) {
	return s.sess.Reset(ctx)
}

// SelectAnnotation selects the annotation at index. An index past the end
// leaves the state unchanged.
func (s *Service) SelectAnnotation(ctx context.Context, index int) (session.Result, error) {
	if index < 0 {
		return session.Result{}, &errcode.CodedError{Code: errcode.Validation, Message: fmt.Sprintf("index must not be negative (got %d)", index)}
	}
	return s.sess.Select(ctx, index)
}

func (s *Service) DeleteSelected(ctx context.Context) (session.Result, error) {
	return s.sess.DeleteSelected(ctx)
}

func (s *Service) CopySelected(ctx context.Context) (session.Result, error) {
	return s.sess.CopySelected(ctx)
}

func (s *Service) SwitchSymbol(ctx context.Context, symbol string) (session.Result, error) {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return session.Result{}, err
	}
	return s.sess.SwitchSymbol(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *Service) ListSurfaces(ctx context.Context) ([]SurfaceInfo, error) {
	surfaces := s.sess.Surfaces()
	out := make([]SurfaceInfo, 0, len(surfaces))
	for i, sf := range surfaces {
		_, inj := sf.(Injector)
		_, load := sf.(DataLoader)
		_, rend := sf.(PNGRenderer)
		out = append(out, SurfaceInfo{ID: sf.ID(), Main: i == 0, Injectable: inj, Loadable: load, Renderable: rend})
	}
	return out, nil
}

func (s *Service) surface(id string) (surface.Surface, error) {
	if err := s.requireNonEmpty(id, "surface_id"); err != nil {
		return nil, err
	}
	sf, ok := s.sess.Surface(strings.TrimSpace(id))
	if !ok {
		return nil, &errcode.CodedError{Code: errcode.SurfaceNotFound, Message: fmt.Sprintf("surface %q not found", id)}
	}
	return sf, nil
}

// InjectEvent feeds synthetic input to a headless surface and returns the
// state once the session has processed it.
func (s *Service) InjectEvent(ctx context.Context, surfaceID string, ev SurfaceEvent) (session.Snapshot, error) {
	sf, err := s.surface(surfaceID)
	if err != nil {
		return session.Snapshot{}, err
	}
	inj, ok := sf.(Injector)
	if !ok {
		return session.Snapshot{}, &errcode.CodedError{Code: errcode.Unsupported, Message: fmt.Sprintf("surface %q does not accept injected events", surfaceID)}
	}
	switch ev.Type {
	case EventClick:
		inj.Click(ev.X, ev.Y)
	case EventCrosshair:
		inj.MoveCrosshair(ev.X, ev.Y)
	case EventLeave:
		inj.Leave()
	case EventPointerDown:
		inj.Pointer(surface.PointerDown, ev.X, ev.Y)
	case EventPointerMove:
		inj.Pointer(surface.PointerMove, ev.X, ev.Y)
	case EventPointerUp:
		inj.Pointer(surface.PointerUp, ev.X, ev.Y)
	case EventDocumentMove:
		inj.DocumentPointer(surface.PointerMove, ev.X, ev.Y)
	case EventDocumentUp:
		inj.DocumentPointer(surface.PointerUp, ev.X, ev.Y)
	case EventVisibleRange:
		if ev.To <= ev.From {
			return session.Snapshot{}, &errcode.CodedError{Code: errcode.Validation, Message: "visible_range requires to > from"}
		}
		inj.ScrollTo(&surface.Range{From: ev.From, To: ev.To})
	case EventClearVisibleRange:
		inj.ScrollTo(nil)
	default:
		return session.Snapshot{}, &errcode.CodedError{Code: errcode.Validation, Message: fmt.Sprintf("unknown event type %q", ev.Type)}
	}
	return s.sess.Snapshot(ctx)
}

// SetSurfaceData loads the primary series of a headless surface. Times must
// be unique.
func (s *Service) SetSurfaceData(ctx context.Context, surfaceID string, points []geometry.Point) (int, error) {
	sf, err := s.surface(surfaceID)
	if err != nil {
		return 0, err
	}
	loader, ok := sf.(DataLoader)
	if !ok {
		return 0, &errcode.CodedError{Code: errcode.Unsupported, Message: fmt.Sprintf("surface %q data is not loadable", surfaceID)}
	}
	sorted := geometry.SortByTime(points)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Time == sorted[i-1].Time {
			return 0, &errcode.CodedError{Code: errcode.Validation, Message: fmt.Sprintf("duplicate time %d", sorted[i].Time)}
		}
	}
	loader.SetPrimaryData(sorted)
	return len(sorted), nil
}

// RenderSurface returns a PNG of the surface.
func (s *Service) RenderSurface(ctx context.Context, surfaceID string) ([]byte, error) {
	sf, err := s.surface(surfaceID)
	if err != nil {
		return nil, err
	}
	r, ok := sf.(PNGRenderer)
	if !ok {
		return nil, &errcode.CodedError{Code: errcode.Unsupported, Message: fmt.Sprintf("surface %q cannot be rendered", surfaceID)}
	}
	// Serialise with session rendering so the image shows a settled frame.
	var buf bytes.Buffer
	var renderErr error
	if err := s.sess.Do(ctx, func() { renderErr = r.RenderPNG(&buf) }); err != nil {
		return nil, err
	}
	if renderErr != nil {
		return nil, fmt.Errorf("render %s: %w", surfaceID, renderErr)
	}
	return buf.Bytes(), nil
}
