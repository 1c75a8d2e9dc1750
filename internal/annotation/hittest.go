package annotation

import "github.com/dgnsrekt/tv_annotator/internal/geometry"

// Endpoint names one end of a line.
type Endpoint string

const (
	EndpointNone  Endpoint = ""
	EndpointStart Endpoint = "start"
	EndpointEnd   Endpoint = "end"
)

// Index returns the position of the endpoint inside Line.Points.
func (e Endpoint) Index() int {
	if e == EndpointEnd {
		return 1
	}
	return 0
}

// Other returns the opposite endpoint.
func (e Endpoint) Other() Endpoint {
	if e == EndpointEnd {
		return EndpointStart
	}
	return EndpointEnd
}

// HitEndpoint returns the first line endpoint (store order, start before
// end) within threshold of p. The first hit wins even if a later one is
// closer.
func HitEndpoint(items []Annotation, p geometry.Point, threshold float64, m geometry.Metric) (int, Endpoint, bool) {
	for i, a := range items {
		if a.Kind != KindLine || len(a.Points) != 2 {
			continue
		}
		if m.Distance(p, a.Points[0]) < threshold {
			return i, EndpointStart, true
		}
		if m.Distance(p, a.Points[1]) < threshold {
			return i, EndpointEnd, true
		}
	}
	return -1, EndpointNone, false
}

// HitBody returns the first line whose segment lies within threshold of p.
func HitBody(items []Annotation, p geometry.Point, threshold float64, m geometry.Metric) (int, bool) {
	for i, a := range items {
		if HitsLineBody(a, p, threshold, m) {
			return i, true
		}
	}
	return -1, false
}

// HitsLineBody reports whether p lies within threshold of line a's segment.
func HitsLineBody(a Annotation, p geometry.Point, threshold float64, m geometry.Metric) bool {
	if a.Kind != KindLine || len(a.Points) != 2 {
		return false
	}
	return m.DistanceToSegment(p, a.Points[0], a.Points[1]) < threshold
}
