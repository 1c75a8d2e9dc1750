// Package render reconciles annotations and previews onto a chart surface.
// Renderers only add, update in place, or remove series; they never rebuild
// everything on a change.
package render

import (
	"log/slog"

	"github.com/dgnsrekt/tv_annotator/internal/surface"
)

// Styles holds the series options used for each kind of visual.
type Styles struct {
	Line       surface.Style `yaml:"line"`
	Horizontal surface.Style `yaml:"horizontal"`
	SixPoint   surface.Style `yaml:"sixpoint"`
	SixLabel   surface.Style `yaml:"sixpoint_label"`
	Preview    surface.Style `yaml:"preview"`
	PreviewDot surface.Style `yaml:"preview_dot"`
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		Line:       surface.Style{Color: "#2962ff", LineWidth: 2},
		Horizontal: surface.Style{Color: "#ff9800", LineWidth: 1},
		SixPoint:   surface.Style{Color: "#9c27b0", LineWidth: 2},
		SixLabel:   surface.Style{Color: "#9c27b0", PointRadius: 4},
		Preview:    surface.Style{Color: "#787b86", LineWidth: 1, LineStyle: 2},
		PreviewDot: surface.Style{Color: "#787b86", PointRadius: 4},
	}
}

// ErrorFunc receives surface failures. Rendering continues after it returns.
type ErrorFunc func(op string, err error)

func logError(op string, err error) {
	slog.Warn("render failed", "op", op, "error", err)
}
