package cdpsurface

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

func TestJSCall(t *testing.T) {
	js := jsCall("setVisibleRange", "main", int64(10), int64(20))
	if !strings.Contains(js, `A.setVisibleRange("main", 10, 20)`) {
		t.Fatalf("jsCall() = %s; want call with JSON args", js)
	}
	if !strings.HasPrefix(js, "(function(){\ntry {") || !strings.HasSuffix(js, "})()") {
		t.Fatalf("jsCall() not wrapped in an IIFE: %s", js)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	var n int
	if err := decodeEnvelope(`{"ok":true,"data":3}`, &n); err != nil || n != 3 {
		t.Fatalf("decodeEnvelope() = %d, %v; want 3, nil", n, err)
	}

	var tm *int64
	if err := decodeEnvelope(`{"ok":true,"data":null}`, &tm); err != nil || tm != nil {
		t.Fatalf("decodeEnvelope(null) = %v, %v; want nil, nil", tm, err)
	}

	err := decodeEnvelope(`{"ok":false,"error_code":"SURFACE_NOT_FOUND","error_message":"pane x not found"}`, nil)
	if got := errcode.Code(err); got != errcode.SurfaceNotFound {
		t.Fatalf("decodeEnvelope() code = %q; want %q", got, errcode.SurfaceNotFound)
	}
	if got := errcode.Code(decodeEnvelope(`{"ok":false}`, nil)); got != errcode.EvalFailure {
		t.Fatalf("decodeEnvelope() without code = %q; want %q", got, errcode.EvalFailure)
	}
	if got := errcode.Code(decodeEnvelope(`not json`, nil)); got != errcode.EvalFailure {
		t.Fatalf("decodeEnvelope(garbage) code = %q; want %q", got, errcode.EvalFailure)
	}
}

func TestPageData(t *testing.T) {
	got := pageData([]geometry.Point{{Time: 3, Value: 1}, {Time: 1, Value: 2}, {Time: 3, Value: 5}})
	want := []geometry.Point{{Time: 1, Value: 2}, {Time: 3, Value: 5}}
	if len(got) != len(want) {
		t.Fatalf("pageData() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pageData() = %v; want %v", got, want)
		}
	}
}

func TestMatchesTab(t *testing.T) {
	if matchesTab(nil, "") {
		t.Fatalf("matchesTab(nil) = true")
	}
}

func offlinePane(id string) (*Browser, *Pane) {
	b, _ := New(Config{}, []PaneSpec{{ID: id}})
	p, _ := b.Pane(id)
	return b, p
}

func TestNewValidatesPanes(t *testing.T) {
	for _, specs := range [][]PaneSpec{nil, {{ID: ""}}, {{ID: "a"}, {ID: "a"}}} {
		if _, err := New(Config{}, specs); errcode.Code(err) != errcode.Validation {
			t.Fatalf("New(%v) error = %v; want %s", specs, err, errcode.Validation)
		}
	}
}

func TestDispatchRoutesEvents(t *testing.T) {
	b, p := offlinePane("main")

	var clicks, moves []surface.MouseEvent
	var pointers, captured []surface.PointerEvent
	var ranges []*surface.Range
	p.OnClick(func(ev surface.MouseEvent) { clicks = append(clicks, ev) })
	p.OnCrosshairMove(func(ev surface.MouseEvent) { moves = append(moves, ev) })
	p.OnPointer(func(ev surface.PointerEvent) { pointers = append(pointers, ev) })
	p.TimeAxis().OnVisibleRangeChange(func(r *surface.Range) { ranges = append(ranges, r) })
	p.mu.Lock()
	p.captures.Add(func(ev surface.PointerEvent) { captured = append(captured, ev) })
	p.mu.Unlock()

	b.dispatchPayload(`{"pane":"main","type":"click","x":12,"y":30,"time":1700000000,"price":42.5}`)
	if len(clicks) != 1 || !clicks[0].HasTime || clicks[0].Time != 1700000000 || clicks[0].SurfaceID != "main" {
		t.Fatalf("clicks = %+v; want one click at 1700000000", clicks)
	}
	if tm, ok := p.CoordinateToTime(12); !ok || tm != 1700000000 {
		t.Fatalf("CoordinateToTime(12) = %d,%v; want cached 1700000000,true", tm, ok)
	}
	if v, ok := p.CoordinateToPrice(30); !ok || v != 42.5 {
		t.Fatalf("CoordinateToPrice(30) = %v,%v; want cached 42.5,true", v, ok)
	}

	b.dispatchPayload(`{"pane":"main","type":"crosshair","x":5,"y":5,"time":null,"price":null}`)
	b.dispatchPayload(`{"pane":"main","type":"leave"}`)
	if len(moves) != 2 || moves[0].HasTime || moves[1].SurfaceID != "main" {
		t.Fatalf("moves = %+v; want an off-data move and a leave", moves)
	}

	b.dispatchPayload(`{"pane":"main","type":"pointer","phase":"down","x":1,"y":2}`)
	b.dispatchPayload(`{"pane":"main","type":"capture","phase":"up","x":900,"y":2}`)
	if len(pointers) != 1 || pointers[0].Phase != surface.PointerDown {
		t.Fatalf("pointers = %+v; want one down", pointers)
	}
	if len(captured) != 2 || captured[1].Phase != surface.PointerUp {
		t.Fatalf("captured = %+v; want down and up", captured)
	}

	b.dispatchPayload(`{"pane":"main","type":"range","from":10,"to":20}`)
	b.dispatchPayload(`{"pane":"main","type":"range","from":null,"to":null}`)
	if len(ranges) != 2 || ranges[0] == nil || *ranges[0] != (surface.Range{From: 10, To: 20}) || ranges[1] != nil {
		t.Fatalf("ranges = %v; want {10 20} then nil", ranges)
	}

	b.dispatchPayload(`{"pane":"other","type":"click","x":1,"y":1}`)
	b.dispatchPayload(`garbage`)
	if len(clicks) != 1 {
		t.Fatalf("clicks = %d after foreign events; want 1", len(clicks))
	}
}

func TestOfflinePaneReportsCDPUnavailable(t *testing.T) {
	_, p := offlinePane("main")
	if _, err := p.AddSeries(surface.SeriesLine, surface.Style{}); errcode.Code(err) != errcode.CDPUnavailable {
		t.Fatalf("AddSeries() error = %v; want %s", err, errcode.CDPUnavailable)
	}
	if _, ok := p.CoordinateToTime(1); ok {
		t.Fatalf("CoordinateToTime() ok = true without a connection")
	}
	p.SetPrimaryData([]geometry.Point{{Time: 2, Value: 1}, {Time: 1, Value: 1}})
	if got := p.PrimaryData(); len(got) != 2 || got[0].Time != 1 {
		t.Fatalf("PrimaryData() = %v; want sorted cached copy", got)
	}
}

// fakeCDP is a browser endpoint that answers the commands Browser sends.
type fakeCDP struct {
	srv *httptest.Server

	mu      sync.Mutex
	conn    net.Conn
	methods []string
	evals   []string
}

func newFakeCDP(t *testing.T, pageURL string) *fakeCDP {
	f := &fakeCDP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/devtools/browser/fake"
		_ = json.NewEncoder(w).Encode(map[string]string{"webSocketDebuggerUrl": wsURL})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "SW", "type": "service_worker", "url": pageURL},
			{"id": "T1", "type": "page", "url": pageURL},
		})
	})
	mux.HandleFunc("/devtools/browser/fake", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.serve(conn)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCDP) serve(conn net.Conn) {
	defer conn.Close()
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if json.Unmarshal(data, &req) != nil {
			continue
		}
		f.mu.Lock()
		f.methods = append(f.methods, req.Method)
		f.mu.Unlock()

		var result any = map[string]any{}
		switch req.Method {
		case "Target.attachToTarget":
			result = map[string]any{"sessionId": "S1"}
		case "Runtime.evaluate":
			var p struct {
				Expression string `json:"expression"`
			}
			_ = json.Unmarshal(req.Params, &p)
			f.mu.Lock()
			f.evals = append(f.evals, p.Expression)
			f.mu.Unlock()
			result = map[string]any{"result": map[string]any{"type": "string", "value": evalReply(p.Expression)}}
		}
		f.write(map[string]any{"id": req.ID, "result": result})
	}
}

func evalReply(expr string) string {
	switch {
	case strings.Contains(expr, "window.__annotator.loaded"):
		return `{"ok":true,"data":true}`
	case strings.Contains(expr, "A.init("):
		return `{"ok":true,"data":["main","rsi"]}`
	case strings.Contains(expr, "A.addSeries("):
		return `{"ok":true,"data":7}`
	case strings.Contains(expr, "A.removeSeries("):
		return `{"ok":false,"error_code":"VALIDATION","error_message":"series 9 not found"}`
	default:
		return `{"ok":true,"data":true}`
	}
}

func (f *fakeCDP) write(v any) {
	data, _ := json.Marshal(v)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = wsutil.WriteServerText(f.conn, data)
	}
}

func (f *fakeCDP) bindingCalled(sessionID, payload string) {
	f.write(map[string]any{
		"method":    "Runtime.bindingCalled",
		"sessionId": sessionID,
		"params":    map[string]any{"name": BindingName, "payload": payload, "executionContextId": 1},
	})
}

func (f *fakeCDP) sawMethod(m string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.methods {
		if got == m {
			return true
		}
	}
	return false
}

func TestBrowserOverFakeCDP(t *testing.T) {
	f := newFakeCDP(t, "http://127.0.0.1:8190/chart/")
	cfg := Config{CDPURL: f.srv.URL, TabFilter: "/chart/", EvalTimeout: 2 * time.Second, ReadyTimeout: 2 * time.Second}
	b, err := New(cfg, []PaneSpec{{ID: "main", Width: 800, Height: 400}, {ID: "rsi", Width: 800, Height: 150}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rsi, _ := b.Pane("rsi")
	rsi.SetPrimaryData([]geometry.Point{{Time: 1, Value: 50}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer b.Close()

	for _, m := range []string{"Target.attachToTarget", "Runtime.enable", "Runtime.addBinding"} {
		if !f.sawMethod(m) {
			t.Fatalf("browser never sent %s", m)
		}
	}
	if !f.sawEval(`A.setData("rsi", 0, [{"time":1,"value":50}])`) {
		t.Fatalf("primary data loaded before Connect was not pushed")
	}
	if got := b.Panes(); len(got) != 2 || got[0].ID() != "main" || got[1].ID() != "rsi" {
		t.Fatalf("Panes() = %v; want main, rsi", got)
	}

	main, _ := b.Pane("main")
	h, err := main.AddSeries(surface.SeriesDots, surface.Style{Color: "#ff0000"})
	if err != nil {
		t.Fatalf("AddSeries() error = %v", err)
	}
	if s := h.(*Series); s.id != 7 {
		t.Fatalf("series id = %d; want 7", s.id)
	}
	err = main.RemoveSeries(&Series{pane: main, id: 9})
	if errcode.Code(err) != errcode.Validation {
		t.Fatalf("RemoveSeries() error = %v; want %s", err, errcode.Validation)
	}
	if err := main.RemoveSeries(main.PrimarySeries()); err == nil {
		t.Fatalf("RemoveSeries(primary) error = nil; want error")
	}

	got := make(chan surface.MouseEvent, 1)
	main.OnClick(func(ev surface.MouseEvent) { got <- ev })
	f.bindingCalled("OTHER", `{"pane":"main","type":"click","x":1,"y":1,"time":5}`)
	f.bindingCalled("S1", `{"pane":"main","type":"click","x":3,"y":4,"time":1700000060,"price":10}`)
	select {
	case ev := <-got:
		if ev.Time != 1700000060 || ev.X != 3 {
			t.Fatalf("click = %+v; want time 1700000060 at x=3", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("binding click never delivered")
	}
}

func (f *fakeCDP) sawEval(fragment string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.evals {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

func TestConnectWithoutURL(t *testing.T) {
	b, _ := New(Config{}, []PaneSpec{{ID: "main"}})
	if err := b.Connect(context.Background()); errcode.Code(err) != errcode.CDPUnavailable {
		t.Fatalf("Connect() error = %v; want %s", err, errcode.CDPUnavailable)
	}
}

func TestPageHandler(t *testing.T) {
	w := httptest.NewRecorder()
	PageHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chart/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"lightweight-charts", "window.__annotator", "window." + BindingName} {
		if !strings.Contains(body, want) {
			t.Fatalf("chart page missing %q", want)
		}
	}

	w = httptest.NewRecorder()
	PageHandler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chart/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d; want 405", w.Code)
	}
}
