package geometry

import (
	"math"
	"testing"
)

func TestNearestByTime(t *testing.T) {
	series := []Point{{Time: 100, Value: 1}, {Time: 200, Value: 2}, {Time: 400, Value: 4}, {Time: 600, Value: 6}}

	tests := []struct {
		name    string
		t       int64
		wantIdx int
	}{
		{"exact", 200, 1},
		{"between closer to lower", 260, 1},
		{"between closer to upper", 390, 2},
		{"tie picks first", 500, 2},
		{"before start", -50, 0},
		{"after end", 10_000, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, idx, ok := NearestByTime(series, tt.t)
			if !ok {
				t.Fatalf("NearestByTime(%d) ok = false; want true", tt.t)
			}
			if idx != tt.wantIdx || got != series[tt.wantIdx] {
				t.Fatalf("NearestByTime(%d) = (%v, %d); want (%v, %d)", tt.t, got, idx, series[tt.wantIdx], tt.wantIdx)
			}
		})
	}

	if _, _, ok := NearestByTime(nil, 5); ok {
		t.Fatalf("NearestByTime(nil) ok = true; want false")
	}
}

func TestDistanceToSegment(t *testing.T) {
	m := Metric{}
	a := Point{Time: 0, Value: 0}
	b := Point{Time: 10, Value: 0}

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"on segment", Point{Time: 5, Value: 0}, 0},
		{"perpendicular", Point{Time: 5, Value: 3}, 3},
		{"beyond end clamps", Point{Time: 13, Value: 4}, 5},
		{"before start clamps", Point{Time: -3, Value: -4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.DistanceToSegment(tt.p, a, b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("DistanceToSegment(%v) = %v; want %v", tt.p, got, tt.want)
			}
		})
	}

	if got := m.DistanceToSegment(Point{Time: 3, Value: 4}, a, a); math.Abs(got-5) > 1e-9 {
		t.Fatalf("DistanceToSegment(degenerate) = %v; want 5", got)
	}
}

func TestMetricTimeScale(t *testing.T) {
	m := Metric{TimeScale: 60}
	got := m.Distance(Point{Time: 0, Value: 0}, Point{Time: 180, Value: 4})
	if math.Abs(got-5) > 1e-9 {
		t.Fatalf("Distance() = %v; want 5", got)
	}
}

func TestSortByTimeDoesNotMutateInput(t *testing.T) {
	in := []Point{{Time: 3}, {Time: 1}, {Time: 2}}
	out := SortByTime(in)
	if in[0].Time != 3 {
		t.Fatalf("SortByTime mutated input: %v", in)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Time > out[i].Time {
			t.Fatalf("SortByTime() = %v; not time ordered", out)
		}
	}
}
