package geometry

import (
	"math"
	"sort"
)

// Point is a sample on a chart: a unix-seconds time and a value.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Add returns p shifted by dt seconds and dv value units.
func (p Point) Add(dt int64, dv float64) Point {
	return Point{Time: p.Time + dt, Value: p.Value + dv}
}

// Sub returns the (time, value) delta p - q.
func (p Point) Sub(q Point) (int64, float64) {
	return p.Time - q.Time, p.Value - q.Value
}

// SortByTime returns a time-ordered copy of points. Equal times keep their
// relative order.
func SortByTime(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// HasTime reports whether any point carries time t.
func HasTime(points []Point, t int64) bool {
	for _, p := range points {
		if p.Time == t {
			return true
		}
	}
	return false
}

// NearestByTime returns the point whose time is closest to t and its index.
// The scan is linear; on ties the first minimal match wins. ok is false for
// an empty series.
func NearestByTime(series []Point, t int64) (Point, int, bool) {
	best := -1
	var bestDist int64
	for i, p := range series {
		d := p.Time - t
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Point{}, -1, false
	}
	return series[best], best, true
}

// Metric measures distances in (time, value) space. TimeScale is the number
// of seconds that count as one distance unit along the time axis; values
// below or equal to zero are treated as 1.
type Metric struct {
	TimeScale float64
}

func (m Metric) scale() float64 {
	if m.TimeScale <= 0 {
		return 1
	}
	return m.TimeScale
}

func (m Metric) xy(p Point) (float64, float64) {
	return float64(p.Time) / m.scale(), p.Value
}

// Distance is the euclidean distance between p and q.
func (m Metric) Distance(p, q Point) float64 {
	px, py := m.xy(p)
	qx, qy := m.xy(q)
	return math.Hypot(px-qx, py-qy)
}

// DistanceToSegment is the distance from p to the closest point of segment ab.
// A degenerate segment (a == b) falls back to the point distance.
func (m Metric) DistanceToSegment(p, a, b Point) float64 {
	px, py := m.xy(p)
	ax, ay := m.xy(a)
	bx, by := m.xy(b)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(px-cx, py-cy)
}
