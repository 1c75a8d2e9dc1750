package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandlerExposesSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, func() int { return 3 })

	m.EventApplied("click", 2*time.Millisecond)
	m.Effect("committed")
	m.RenderError("set_data")
	m.Synced("crosshair", false)
	m.Annotations(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`annotator_events_total{event="click"} 1`,
		`annotator_effects_total{effect="committed"} 1`,
		`annotator_render_errors_total{op="set_data"} 1`,
		`annotator_sync_total{kind="crosshair",result="echo"} 1`,
		`annotator_annotations 4`,
		`annotator_stream_clients 3`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
