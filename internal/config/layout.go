package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/tv_annotator/internal/render"
)

// PaneEntry describes one chart pane.
type PaneEntry struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	// Width/Height are pixel sizes; the browser backend uses Height only.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	// PriceMin/PriceMax fix the vertical scale of a headless pane.
	PriceMin float64 `yaml:"price_min"`
	PriceMax float64 `yaml:"price_max"`
}

// LayoutConfig is the top-level YAML configuration for the chart panes.
type LayoutConfig struct {
	// Main is the pane annotations are drawn on.
	Main  string      `yaml:"main"`
	Panes []PaneEntry `yaml:"panes"`
	// Styles overrides the annotation palette; unset keys keep defaults.
	Styles render.Styles `yaml:"styles"`
}

// DefaultLayout is used when no layout file exists: the price chart plus the
// usual indicator panes.
func DefaultLayout() *LayoutConfig {
	return &LayoutConfig{
		Main:   "price",
		Styles: render.DefaultStyles(),
		Panes: []PaneEntry{
			{ID: "price", Title: "Price", Width: 1200, Height: 400},
			{ID: "mean_reversion", Title: "Mean reversion", Width: 1200, Height: 150},
			{ID: "rsi", Title: "RSI", Width: 1200, Height: 150, PriceMin: 0, PriceMax: 100},
			{ID: "volatility", Title: "Volatility", Width: 1200, Height: 150},
			{ID: "comparison", Title: "Comparison", Width: 1200, Height: 150},
		},
	}
}

// LoadLayout reads and validates a panes YAML config file. A missing file
// yields DefaultLayout.
func LoadLayout(path string) (*LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultLayout(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	cfg := LayoutConfig{Styles: render.DefaultStyles()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks pane ids and the main pane reference.
func (c *LayoutConfig) Validate() error {
	if len(c.Panes) < 1 {
		return fmt.Errorf("layout config: at least one pane is required")
	}
	seen := make(map[string]bool, len(c.Panes))
	for i, p := range c.Panes {
		if p.ID == "" {
			return fmt.Errorf("layout config: panes[%d] missing id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("layout config: duplicate pane id %q", p.ID)
		}
		seen[p.ID] = true
		if p.PriceMax < p.PriceMin {
			return fmt.Errorf("layout config: pane %q has price_max below price_min", p.ID)
		}
	}
	if c.Main == "" {
		c.Main = c.Panes[0].ID
	}
	if !seen[c.Main] {
		return fmt.Errorf("layout config: main pane %q is not defined", c.Main)
	}
	return nil
}
