package annotation

import (
	"fmt"

	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

// Kind tags the annotation variant.
type Kind string

const (
	KindLine       Kind = "line"
	KindHorizontal Kind = "horizontal"
	KindSixPoint   Kind = "sixpoint"
)

// HorizontalSpan is how far a horizontal ray extends on each side of its
// anchor time when rendered.
const HorizontalSpan int64 = 10 * 365 * 24 * 60 * 60

// SixPointLabels are assigned to six-point samples in the order they were placed.
var SixPointLabels = [6]string{"A", "B", "C", "D", "E", "X"}

// Annotation is a user-authored overlay. Which fields are meaningful
// depends on Kind:
//
//	line:       Points (2, insertion order)
//	horizontal: Price, Time
//	sixpoint:   Points (6, time ordered) and Labels aligned with Points
type Annotation struct {
	Kind   Kind             `json:"kind"`
	Points []geometry.Point `json:"points,omitempty"`
	Price  float64          `json:"price,omitempty"`
	Time   int64            `json:"time,omitempty"`
	Labels []string         `json:"labels,omitempty"`
}

// NewLine builds a two-point segment keeping the points in the given order.
func NewLine(start, end geometry.Point) Annotation {
	return Annotation{Kind: KindLine, Points: []geometry.Point{start, end}}
}

// NewHorizontal builds a horizontal ray at price anchored at t.
func NewHorizontal(price float64, t int64) Annotation {
	return Annotation{Kind: KindHorizontal, Price: price, Time: t}
}

// NewSixPoint builds a six-point annotation from points in insertion order.
// The stored points are sorted by time and each keeps its insertion label.
func NewSixPoint(inserted []geometry.Point) (Annotation, error) {
	if len(inserted) != len(SixPointLabels) {
		return Annotation{}, fmt.Errorf("sixpoint requires %d points, got %d", len(SixPointLabels), len(inserted))
	}
	sorted, labels := LabelByInsertion(inserted)
	return Annotation{Kind: KindSixPoint, Points: sorted, Labels: labels}, nil
}

// LabelByInsertion returns the points in render (time) order together with
// the insertion-order letter of each one.
func LabelByInsertion(inserted []geometry.Point) ([]geometry.Point, []string) {
	type tagged struct {
		p     geometry.Point
		label string
	}
	tags := make([]tagged, len(inserted))
	for i, p := range inserted {
		label := ""
		if i < len(SixPointLabels) {
			label = SixPointLabels[i]
		}
		tags[i] = tagged{p: p, label: label}
	}
	points := geometry.SortByTime(inserted)
	labels := make([]string, len(points))
	used := make([]bool, len(tags))
	for i, p := range points {
		for j, tg := range tags {
			if !used[j] && tg.p == p {
				used[j] = true
				labels[i] = tg.label
				break
			}
		}
	}
	return points, labels
}

// Validate checks the shape invariants of a.
func (a Annotation) Validate() error {
	switch a.Kind {
	case KindLine:
		if len(a.Points) != 2 {
			return fmt.Errorf("line requires 2 points, got %d", len(a.Points))
		}
	case KindHorizontal:
	case KindSixPoint:
		if len(a.Points) != len(SixPointLabels) {
			return fmt.Errorf("sixpoint requires %d points, got %d", len(SixPointLabels), len(a.Points))
		}
		if len(a.Labels) != 0 && len(a.Labels) != len(a.Points) {
			return fmt.Errorf("sixpoint has %d labels for %d points", len(a.Labels), len(a.Points))
		}
	default:
		return fmt.Errorf("unknown annotation kind %q", a.Kind)
	}
	return nil
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Points != nil {
		out.Points = append([]geometry.Point(nil), a.Points...)
	}
	if a.Labels != nil {
		out.Labels = append([]string(nil), a.Labels...)
	}
	return out
}

// RenderPoints returns the time-ordered data a chart series should display.
func (a Annotation) RenderPoints() []geometry.Point {
	switch a.Kind {
	case KindHorizontal:
		return []geometry.Point{
			{Time: a.Time - HorizontalSpan, Value: a.Price},
			{Time: a.Time + HorizontalSpan, Value: a.Price},
		}
	default:
		return geometry.SortByTime(a.Points)
	}
}
