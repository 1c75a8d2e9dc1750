package controller

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/dgnsrekt/tv_annotator/internal/engine"
	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/render"
	"github.com/dgnsrekt/tv_annotator/internal/session"
	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
	"github.com/dgnsrekt/tv_annotator/internal/surface/memsurface"
)

// plainSurface hides the headless extras of a memsurface.
type plainSurface struct{ surface.Surface }

func newService(t *testing.T) (*Service, *memsurface.Surface) {
	t.Helper()
	main := memsurface.New(memsurface.Options{ID: "price", Width: 1000, Height: 100, PriceMin: 0, PriceMax: 100})
	other := plainSurface{memsurface.New(memsurface.Options{ID: "rsi"})}
	sess := session.New(main, []surface.Surface{other}, session.Config{Thresholds: engine.DefaultThresholds(), Styles: render.DefaultStyles()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sess.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("session did not stop")
		}
	})
	return NewService(sess), main
}

func requireCode(t *testing.T, err error, code string) *errcode.CodedError {
	t.Helper()
	var got *errcode.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v (%T); want *errcode.CodedError", err, err)
	}
	if got.Code != code {
		t.Fatalf("code = %q; want %q", got.Code, code)
	}
	return got
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("AAPL", "symbol"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}
	got := requireCode(t, s.requireNonEmpty("   ", "symbol"), errcode.Validation)
	if got.Message != "symbol is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got.Message, "symbol is required")
	}
}

func TestToggleModeValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	if _, err := s.ToggleMode(ctx, "move-endpoint"); err == nil {
		t.Fatalf("ToggleMode(move-endpoint) = nil; want validation error")
	} else {
		requireCode(t, err, errcode.Validation)
	}
	res, err := s.ToggleMode(ctx, " Trendline ")
	if err != nil {
		t.Fatalf("ToggleMode() error = %v", err)
	}
	if res.Snapshot.Mode != engine.ModeTrendline {
		t.Fatalf("mode = %s; want trendline", res.Snapshot.Mode)
	}
}

func TestSwitchSymbolRequiresSymbol(t *testing.T) {
	s, _ := newService(t)
	_, err := s.SwitchSymbol(context.Background(), "  ")
	requireCode(t, err, errcode.Validation)

	res, err := s.SwitchSymbol(context.Background(), "ethusd")
	if err != nil {
		t.Fatalf("SwitchSymbol() error = %v", err)
	}
	if res.Snapshot.Symbol != "ETHUSD" {
		t.Fatalf("symbol = %q; want ETHUSD", res.Snapshot.Symbol)
	}
}

func TestInjectEventDrawsHorizontal(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	pts := []geometry.Point{{Time: 1000, Value: 1}, {Time: 0, Value: 1}}
	if n, err := s.SetSurfaceData(ctx, "price", pts); err != nil || n != 2 {
		t.Fatalf("SetSurfaceData() = %d, %v; want 2, nil", n, err)
	}
	if _, err := s.ToggleMode(ctx, "horizontal"); err != nil {
		t.Fatalf("ToggleMode() error = %v", err)
	}
	snap, err := s.InjectEvent(ctx, "price", SurfaceEvent{Type: EventClick, X: 700, Y: 25})
	if err != nil {
		t.Fatalf("InjectEvent() error = %v", err)
	}
	if len(snap.Annotations) != 1 || snap.Annotations[0].Price != 75 || snap.Annotations[0].Time != 1000 {
		t.Fatalf("annotations = %+v; want one horizontal at 75 (nearest bar 1000)", snap.Annotations)
	}
}

func TestSelectAnnotationDeletesHorizontal(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.SelectAnnotation(ctx, -1)
	requireCode(t, err, errcode.Validation)

	if _, err := s.SetSurfaceData(ctx, "price", []geometry.Point{{Time: 0, Value: 1}, {Time: 1000, Value: 1}}); err != nil {
		t.Fatalf("SetSurfaceData() error = %v", err)
	}
	if _, err := s.ToggleMode(ctx, "horizontal"); err != nil {
		t.Fatalf("ToggleMode() error = %v", err)
	}
	if _, err := s.InjectEvent(ctx, "price", SurfaceEvent{Type: EventClick, X: 500, Y: 40}); err != nil {
		t.Fatalf("InjectEvent() error = %v", err)
	}
	res, err := s.SelectAnnotation(ctx, 0)
	if err != nil || res.Snapshot.Selected != 0 {
		t.Fatalf("SelectAnnotation(0) = %d, %v; want 0", res.Snapshot.Selected, err)
	}
	res, err = s.DeleteSelected(ctx)
	if err != nil || len(res.Snapshot.Annotations) != 0 || res.Snapshot.Selected != -1 {
		t.Fatalf("DeleteSelected() = %+v, %v; want empty store", res.Snapshot, err)
	}
}

func TestInjectEventErrors(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.InjectEvent(ctx, "missing", SurfaceEvent{Type: EventClick})
	requireCode(t, err, errcode.SurfaceNotFound)

	_, err = s.InjectEvent(ctx, "rsi", SurfaceEvent{Type: EventClick})
	requireCode(t, err, errcode.Unsupported)

	_, err = s.InjectEvent(ctx, "price", SurfaceEvent{Type: "scroll"})
	requireCode(t, err, errcode.Validation)

	_, err = s.InjectEvent(ctx, "price", SurfaceEvent{Type: EventVisibleRange, From: 10, To: 5})
	requireCode(t, err, errcode.Validation)

	_, err = s.SetSurfaceData(ctx, "price", []geometry.Point{{Time: 1}, {Time: 1}})
	requireCode(t, err, errcode.Validation)
}

func TestListSurfacesAndRender(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	list, err := s.ListSurfaces(ctx)
	if err != nil {
		t.Fatalf("ListSurfaces() error = %v", err)
	}
	if len(list) != 2 || !list[0].Main || list[0].ID != "price" || list[1].Injectable {
		t.Fatalf("ListSurfaces() = %+v", list)
	}

	data, err := s.RenderSurface(ctx, "price")
	if err != nil {
		t.Fatalf("RenderSurface() error = %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	_, err = s.RenderSurface(ctx, "rsi")
	requireCode(t, err, errcode.Unsupported)
}

func TestSnapshots(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.TakeSnapshot(ctx, "price", "")
	requireCode(t, err, errcode.Unsupported)

	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error = %v", err)
	}
	WithSnapshots(store)(s)
	if _, err := s.SwitchSymbol(ctx, "btcusd"); err != nil {
		t.Fatalf("SwitchSymbol() error = %v", err)
	}

	meta, err := s.TakeSnapshot(ctx, "price", " after breakout ")
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if meta.Symbol != "BTCUSD" || meta.SurfaceID != "price" || meta.Notes != "after breakout" || meta.Width != 1000 {
		t.Fatalf("TakeSnapshot() = %+v", meta)
	}
	_, err = s.TakeSnapshot(ctx, "rsi", "")
	requireCode(t, err, errcode.Unsupported)

	list, err := s.ListSnapshots(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSnapshots() = %+v, %v; want one", list, err)
	}
	if _, format, err := s.SnapshotImage(ctx, meta.ID); err != nil || format != "png" {
		t.Fatalf("SnapshotImage() = %q, %v; want png", format, err)
	}
	if err := s.DeleteSnapshot(ctx, meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	_, err = s.GetSnapshot(ctx, meta.ID)
	requireCode(t, err, errcode.NotFound)
}
