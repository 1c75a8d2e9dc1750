package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/controller"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/session"
	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
)

type stubService struct {
	err       error
	lastMode  string
	lastEvent controller.SurfaceEvent
	lastIndex int
	png       []byte
}

func (s *stubService) State(ctx context.Context) (session.Snapshot, error) {
	return session.Snapshot{Symbol: "BTCUSD", Selected: -1}, s.err
}
func (s *stubService) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	return []annotation.Annotation{}, s.err
}
func (s *stubService) ToggleMode(ctx context.Context, mode string) (session.Result, error) {
	s.lastMode = mode
	return session.Result{}, s.err
}
func (s *stubService) Reset(ctx context.Context) (session.Result, error) { return session.Result{}, s.err }
func (s *stubService) SelectAnnotation(ctx context.Context, index int) (session.Result, error) {
	s.lastIndex = index
	return session.Result{Snapshot: session.Snapshot{Selected: index}}, s.err
}
func (s *stubService) DeleteSelected(ctx context.Context) (session.Result, error) {
	return session.Result{}, s.err
}
func (s *stubService) CopySelected(ctx context.Context) (session.Result, error) {
	return session.Result{}, s.err
}
func (s *stubService) SwitchSymbol(ctx context.Context, symbol string) (session.Result, error) {
	return session.Result{Snapshot: session.Snapshot{Symbol: symbol}}, s.err
}
func (s *stubService) ListSurfaces(ctx context.Context) ([]controller.SurfaceInfo, error) {
	return []controller.SurfaceInfo{{ID: "main", Main: true}}, s.err
}
func (s *stubService) InjectEvent(ctx context.Context, surfaceID string, ev controller.SurfaceEvent) (session.Snapshot, error) {
	s.lastEvent = ev
	return session.Snapshot{}, s.err
}
func (s *stubService) SetSurfaceData(ctx context.Context, surfaceID string, points []geometry.Point) (int, error) {
	return len(points), s.err
}
func (s *stubService) RenderSurface(ctx context.Context, surfaceID string) ([]byte, error) {
	return s.png, s.err
}
func (s *stubService) TakeSnapshot(ctx context.Context, surfaceID, notes string) (snapshot.Meta, error) {
	return snapshot.Meta{ID: "snap-1", SurfaceID: surfaceID, Notes: notes, Format: "png"}, s.err
}
func (s *stubService) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) {
	return []snapshot.Meta{{ID: "snap-1"}}, s.err
}
func (s *stubService) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	return snapshot.Meta{ID: id}, s.err
}
func (s *stubService) SnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return s.png, "png", s.err
}
func (s *stubService) DeleteSnapshot(ctx context.Context, id string) error { return s.err }

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{})
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if !strings.Contains(body, `/docs/stream`) {
		t.Fatalf("docs missing stream docs link")
	}
}

func TestStreamDocs(t *testing.T) {
	h := NewServer(&stubService{})
	req := httptest.NewRequest(http.MethodGet, "/docs/stream", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{"/api/v1/events", `href="/docs"`, "id: 12\nevent: state", `id="sse-format"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream docs missing %q", want)
		}
	}
}
