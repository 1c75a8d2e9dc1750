package engine

import (
	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
)

// LabeledPoint is a placed six-point sample with its insertion-order label.
type LabeledPoint struct {
	geometry.Point
	Label string `json:"label"`
}

// PreviewGeometry is the transient, uncommitted visual for a State. A nil
// field means the matching preview series must not exist.
type PreviewGeometry struct {
	Segment []geometry.Point `json:"segment,omitempty"`
	SixLine []geometry.Point `json:"six_line,omitempty"`
	Dots    []LabeledPoint   `json:"dots,omitempty"`
}

// Empty reports whether nothing should be previewed.
func (g PreviewGeometry) Empty() bool {
	return g.Segment == nil && g.SixLine == nil && g.Dots == nil
}

// Preview derives the preview geometry from s.
func Preview(s State) PreviewGeometry {
	var g PreviewGeometry
	switch s.Mode {
	case ModeTrendline:
		if len(s.Buffer) == 1 && s.Hover != nil {
			g.Segment = sortedPair(s.Buffer[0], *s.Hover)
		}
	case ModeMoveEndpoint:
		if s.Anchor != nil && s.Hover != nil {
			g.Segment = sortedPair(*s.Anchor, *s.Hover)
		}
	case ModeCopyTrendline:
		if s.Copy != nil && s.Hover != nil && s.Copy.DT != 0 {
			g.Segment = []geometry.Point{*s.Hover, s.Hover.Add(s.Copy.DT, s.Copy.DV)}
		}
	case ModeSixPoint:
		g.SixLine, g.Dots = sixPointPreview(s.Buffer, s.Hover)
	}
	return g
}

// sortedPair returns [a, b] in time order, or nil when both share a time.
func sortedPair(a, b geometry.Point) []geometry.Point {
	if a.Time == b.Time {
		return nil
	}
	if a.Time > b.Time {
		a, b = b, a
	}
	return []geometry.Point{a, b}
}

func sixPointPreview(buffer []geometry.Point, hover *geometry.Point) ([]geometry.Point, []LabeledPoint) {
	if len(buffer) == 0 {
		return nil, nil
	}

	renderOrder, labels := annotation.LabelByInsertion(buffer)
	dots := make([]LabeledPoint, len(renderOrder))
	for i, p := range renderOrder {
		dots[i] = LabeledPoint{Point: p, Label: labels[i]}
	}

	var line []geometry.Point
	switch {
	case hover != nil && !geometry.HasTime(buffer, hover.Time) && len(buffer) < len(annotation.SixPointLabels):
		line = geometry.SortByTime(append(append([]geometry.Point(nil), buffer...), *hover))
	case len(renderOrder) >= 2:
		line = renderOrder
	}
	return line, dots
}
