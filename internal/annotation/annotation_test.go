package annotation

import (
	"testing"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

func TestNewLineKeepsInsertionOrder(t *testing.T) {
	a := NewLine(geometry.Point{Time: 200, Value: 2}, geometry.Point{Time: 100, Value: 1})
	if a.Points[0].Time != 200 || a.Points[1].Time != 100 {
		t.Fatalf("NewLine() points = %v; want insertion order kept", a.Points)
	}
	rp := a.RenderPoints()
	if rp[0].Time != 100 || rp[1].Time != 200 {
		t.Fatalf("RenderPoints() = %v; want time ordered", rp)
	}
}

func TestNewSixPointSortsAndLabels(t *testing.T) {
	inserted := []geometry.Point{
		{Time: 30, Value: 3}, {Time: 10, Value: 1}, {Time: 60, Value: 6},
		{Time: 20, Value: 2}, {Time: 50, Value: 5}, {Time: 40, Value: 4},
	}
	a, err := NewSixPoint(inserted)
	if err != nil {
		t.Fatalf("NewSixPoint() = %v; want nil", err)
	}
	wantTimes := []int64{10, 20, 30, 40, 50, 60}
	wantLabels := []string{"B", "D", "A", "X", "E", "C"}
	for i := range wantTimes {
		if a.Points[i].Time != wantTimes[i] {
			t.Fatalf("Points[%d].Time = %d; want %d", i, a.Points[i].Time, wantTimes[i])
		}
		if a.Labels[i] != wantLabels[i] {
			t.Fatalf("Labels[%d] = %q; want %q", i, a.Labels[i], wantLabels[i])
		}
	}
}

func TestNewSixPointRejectsWrongCount(t *testing.T) {
	if _, err := NewSixPoint(make([]geometry.Point, 5)); err == nil {
		t.Fatalf("NewSixPoint(5 points) = nil; want error")
	}
	bad := Annotation{Kind: KindSixPoint, Points: make([]geometry.Point, 4)}
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate() = nil; want error for 4-point sixpoint")
	}
}

func TestHorizontalRenderSpan(t *testing.T) {
	a := NewHorizontal(42.5, 1_000_000)
	rp := a.RenderPoints()
	if rp[0].Time != 1_000_000-HorizontalSpan || rp[1].Time != 1_000_000+HorizontalSpan {
		t.Fatalf("RenderPoints() = %v; want ±HorizontalSpan", rp)
	}
	if rp[0].Value != 42.5 || rp[1].Value != 42.5 {
		t.Fatalf("RenderPoints() values = %v; want 42.5", rp)
	}
}

func TestStoreStaleIndices(t *testing.T) {
	s := NewStore()
	s.Add(NewHorizontal(1, 1))
	s.Add(NewHorizontal(2, 2))

	if !s.Delete(0) {
		t.Fatalf("Delete(0) = false; want true")
	}
	if s.Delete(1) {
		t.Fatalf("Delete(1) after shift = true; want false")
	}
	if s.Set(5, NewHorizontal(3, 3)) {
		t.Fatalf("Set(5) = true; want false")
	}
	if _, ok := s.Get(-1); ok {
		t.Fatalf("Get(-1) ok = true; want false")
	}
	got, ok := s.Get(0)
	if !ok || got.Price != 2 {
		t.Fatalf("Get(0) = (%v, %v); want price 2", got, ok)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	s.Add(NewLine(geometry.Point{Time: 1}, geometry.Point{Time: 2}))
	a, _ := s.Get(0)
	a.Points[0].Time = 99
	again, _ := s.Get(0)
	if again.Points[0].Time != 1 {
		t.Fatalf("Get() leaked internal slice: %v", again.Points)
	}
}

func TestHitEndpointFirstMatchWins(t *testing.T) {
	items := []Annotation{
		NewHorizontal(0, 0),
		NewLine(geometry.Point{Time: 100, Value: 10}, geometry.Point{Time: 200, Value: 20}),
		NewLine(geometry.Point{Time: 103, Value: 10}, geometry.Point{Time: 300, Value: 30}),
	}
	idx, ep, ok := HitEndpoint(items, geometry.Point{Time: 103, Value: 10}, 5, geometry.Metric{})
	if !ok || idx != 1 || ep != EndpointStart {
		t.Fatalf("HitEndpoint() = (%d, %q, %v); want (1, start, true)", idx, ep, ok)
	}
	idx, ep, ok = HitEndpoint(items, geometry.Point{Time: 199, Value: 21}, 5, geometry.Metric{})
	if !ok || idx != 1 || ep != EndpointEnd {
		t.Fatalf("HitEndpoint() = (%d, %q, %v); want (1, end, true)", idx, ep, ok)
	}
	if _, _, ok := HitEndpoint(items, geometry.Point{Time: 150, Value: 90}, 5, geometry.Metric{}); ok {
		t.Fatalf("HitEndpoint() far away ok = true; want false")
	}
}

func TestHitBody(t *testing.T) {
	items := []Annotation{
		NewLine(geometry.Point{Time: 0, Value: 0}, geometry.Point{Time: 10, Value: 10}),
	}
	if idx, ok := HitBody(items, geometry.Point{Time: 5, Value: 5.5}, 1, geometry.Metric{}); !ok || idx != 0 {
		t.Fatalf("HitBody(near) = (%d, %v); want (0, true)", idx, ok)
	}
	if _, ok := HitBody(items, geometry.Point{Time: 5, Value: 8}, 1, geometry.Metric{}); ok {
		t.Fatalf("HitBody(far) ok = true; want false")
	}
}
