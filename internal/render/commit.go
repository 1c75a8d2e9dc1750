package render

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

type committed struct {
	ann    annotation.Annotation
	series []surface.Series
}

// Committer keeps one group of series per committed annotation, keyed by the
// annotation's store index.
type Committer struct {
	surf    surface.Surface
	styles  Styles
	onError ErrorFunc
	entries map[int]*committed
}

// NewCommitter returns a Committer drawing on surf. A nil onError logs.
func NewCommitter(surf surface.Surface, styles Styles, onError ErrorFunc) *Committer {
	if onError == nil {
		onError = logError
	}
	return &Committer{surf: surf, styles: styles, onError: onError, entries: make(map[int]*committed)}
}

// Sync makes the rendered series match anns. Entries are created when
// missing and updated only when their data changed. Keys past the end of
// anns are dropped.
func (c *Committer) Sync(anns []annotation.Annotation) {
	for i := range c.entries {
		if i >= len(anns) {
			c.drop(i)
		}
	}
	for i, a := range anns {
		e, ok := c.entries[i]
		if ok && equalAnnotation(e.ann, a) {
			continue
		}
		if err := a.Validate(); err != nil {
			slog.Warn("skipping invalid annotation", "index", i, "kind", a.Kind, "error", err)
			if ok {
				c.drop(i)
			}
			continue
		}
		if ok && e.ann.Kind == a.Kind {
			c.update(e, a)
			continue
		}
		if ok {
			c.drop(i)
		}
		c.create(i, a)
	}
}

// Remove drops the series of index i and shifts later keys down by one,
// mirroring a store deletion.
func (c *Committer) Remove(i int) {
	if _, ok := c.entries[i]; ok {
		c.drop(i)
	}
	keys := make([]int, 0, len(c.entries))
	for k := range c.entries {
		if k > i {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.entries[k-1] = c.entries[k]
		delete(c.entries, k)
	}
}

// Clear removes every committed series.
func (c *Committer) Clear() {
	for i := range c.entries {
		c.drop(i)
	}
}

// Len returns the number of rendered annotations.
func (c *Committer) Len() int { return len(c.entries) }

// Series returns the series rendered for index i.
func (c *Committer) Series(i int) []surface.Series {
	if e, ok := c.entries[i]; ok {
		return append([]surface.Series(nil), e.series...)
	}
	return nil
}

func (c *Committer) create(i int, a annotation.Annotation) {
	e := &committed{ann: a.Clone()}
	switch a.Kind {
	case annotation.KindLine:
		e.series = c.add(i, surface.SeriesLine, c.styles.Line, a.RenderPoints(), nil)
	case annotation.KindHorizontal:
		e.series = c.add(i, surface.SeriesLine, c.styles.Horizontal, a.RenderPoints(), nil)
	case annotation.KindSixPoint:
		e.series = c.add(i, surface.SeriesLine, c.styles.SixPoint, a.RenderPoints(), nil)
		for k, p := range a.Points {
			marker := []surface.Marker{{Time: p.Time, Text: sixLabel(a, k), Color: c.styles.SixLabel.Color}}
			e.series = append(e.series, c.add(i, surface.SeriesDots, c.styles.SixLabel, []geometry.Point{p}, marker)...)
		}
	}
	c.entries[i] = e
}

func (c *Committer) add(i int, kind surface.SeriesKind, style surface.Style, data []geometry.Point, markers []surface.Marker) []surface.Series {
	s, err := c.surf.AddSeries(kind, style)
	if err != nil {
		c.onError("add_series", fmt.Errorf("annotation %d: %w", i, err))
		return nil
	}
	if err := s.SetData(data); err != nil {
		c.onError("set_data", fmt.Errorf("annotation %d: %w", i, err))
	}
	if markers != nil {
		if err := s.SetMarkers(markers); err != nil {
			c.onError("set_markers", fmt.Errorf("annotation %d: %w", i, err))
		}
	}
	return []surface.Series{s}
}

func (c *Committer) update(e *committed, a annotation.Annotation) {
	want := 1
	if a.Kind == annotation.KindSixPoint {
		want = 1 + len(a.Points)
	}
	if len(e.series) != want {
		// a previous create failed part way; rebuild the group
		for i, ent := range c.entries {
			if ent == e {
				c.drop(i)
				c.create(i, a)
				return
			}
		}
	}
	if err := e.series[0].SetData(a.RenderPoints()); err != nil {
		c.onError("set_data", err)
	}
	if a.Kind == annotation.KindSixPoint {
		for k, p := range a.Points {
			s := e.series[1+k]
			if err := s.SetData([]geometry.Point{p}); err != nil {
				c.onError("set_data", err)
			}
			if err := s.SetMarkers([]surface.Marker{{Time: p.Time, Text: sixLabel(a, k), Color: c.styles.SixLabel.Color}}); err != nil {
				c.onError("set_markers", err)
			}
		}
	}
	e.ann = a.Clone()
}

func (c *Committer) drop(i int) {
	e := c.entries[i]
	delete(c.entries, i)
	if e == nil {
		return
	}
	for _, s := range e.series {
		if err := c.surf.RemoveSeries(s); err != nil {
			c.onError("remove_series", fmt.Errorf("annotation %d: %w", i, err))
		}
	}
}

func sixLabel(a annotation.Annotation, k int) string {
	if k < len(a.Labels) && a.Labels[k] != "" {
		return a.Labels[k]
	}
	return annotation.SixPointLabels[k]
}

func equalAnnotation(a, b annotation.Annotation) bool {
	return a.Kind == b.Kind && a.Price == b.Price && a.Time == b.Time &&
		slices.Equal(a.Points, b.Points) && slices.Equal(a.Labels, b.Labels)
}
