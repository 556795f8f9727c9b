// Package config loads the map configuration: view, controls, overlay
// behaviour and the layer tree. A default is compiled in; a YAML file can
// replace it.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-camino/internal/mapview"
)

//go:embed default.yaml
var defaultYAML []byte

// Layer kinds.
const (
	KindOSM    = "osm"
	KindWMS    = "wms"
	KindVector = "vector"
)

// Config is the root of the map configuration file.
type Config struct {
	Title    string       `yaml:"title" json:"title"`
	View     View         `yaml:"view" json:"view"`
	Controls Controls     `yaml:"controls" json:"controls"`
	Overlay  Overlay      `yaml:"overlay" json:"overlay"`
	Groups   []LayerGroup `yaml:"groups" json:"groups"`
}

// View is the initial view. Center and extent are WGS84.
type View struct {
	Center [2]float64 `yaml:"center" json:"center"`
	Zoom   float64    `yaml:"zoom" json:"zoom"`
	Extent [4]float64 `yaml:"extent" json:"extent"`
}

// Controls configures the map widgets.
type Controls struct {
	ScaleLine     ScaleLine     `yaml:"scaleLine" json:"scaleLine"`
	OverviewMap   OverviewMap   `yaml:"overviewMap" json:"overviewMap"`
	ZoomToExtent  ZoomToExtent  `yaml:"zoomToExtent" json:"zoomToExtent"`
	FullScreen    bool          `yaml:"fullScreen" json:"fullScreen"`
	LayerSwitcher LayerSwitcher `yaml:"layerSwitcher" json:"layerSwitcher"`
}

type ScaleLine struct {
	Units    string `yaml:"units" json:"units"`
	Bar      bool   `yaml:"bar" json:"bar"`
	Steps    int    `yaml:"steps" json:"steps"`
	Text     bool   `yaml:"text" json:"text"`
	MinWidth int    `yaml:"minWidth" json:"minWidth"`
}

type OverviewMap struct {
	Collapsed bool `yaml:"collapsed" json:"collapsed"`
}

// ZoomToExtent holds a WGS84 extent.
type ZoomToExtent struct {
	Extent [4]float64 `yaml:"extent" json:"extent"`
}

type LayerSwitcher struct {
	TipLabel string `yaml:"tipLabel" json:"tipLabel"`
}

// Overlay configures popup auto-panning.
type Overlay struct {
	AutoPan           bool `yaml:"autoPan" json:"autoPan"`
	AutoPanDurationMs int  `yaml:"autoPanDurationMs" json:"autoPanDurationMs"`
}

// LayerGroup is a titled folder in the layer switcher.
type LayerGroup struct {
	ID     string  `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Fold   string  `yaml:"fold,omitempty" json:"fold,omitempty"`
	Layers []Layer `yaml:"layers" json:"layers"`
}

// Layer is a base imagery or thematic layer.
type Layer struct {
	ID           string            `yaml:"id" json:"id"`
	Title        string            `yaml:"title" json:"title"`
	Base         bool              `yaml:"base" json:"base"`
	Visible      bool              `yaml:"visible" json:"visible"`
	Kind         string            `yaml:"kind" json:"kind"`
	URL          string            `yaml:"url,omitempty" json:"url,omitempty"`
	Params       map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Attributions string            `yaml:"attributions,omitempty" json:"attributions,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("config: invalid default.yaml: %v", err))
	}
	return cfg
}

// Load reads a configuration file, or returns the default when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing map config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the layer tree and extents.
func (c *Config) Validate() error {
	var errs []error

	if !validExtent(c.View.Extent) {
		errs = append(errs, fmt.Errorf("view.extent %v is not a valid lon/lat box", c.View.Extent))
	}
	if c.Controls.ZoomToExtent.Extent != ([4]float64{}) && !validExtent(c.Controls.ZoomToExtent.Extent) {
		errs = append(errs, fmt.Errorf("controls.zoomToExtent.extent %v is not a valid lon/lat box", c.Controls.ZoomToExtent.Extent))
	}

	seen := map[string]bool{}
	bases, visibleBases := 0, 0
	for _, g := range c.Groups {
		for _, l := range g.Layers {
			if l.ID == "" {
				errs = append(errs, fmt.Errorf("group %q has a layer without id", g.ID))
				continue
			}
			if seen[l.ID] {
				errs = append(errs, fmt.Errorf("duplicate layer id %q", l.ID))
			}
			seen[l.ID] = true

			switch l.Kind {
			case KindOSM, KindVector:
			case KindWMS:
				if l.URL == "" {
					errs = append(errs, fmt.Errorf("wms layer %q needs a url", l.ID))
				}
			default:
				errs = append(errs, fmt.Errorf("layer %q has unknown kind %q", l.ID, l.Kind))
			}

			if l.Base {
				bases++
				if l.Visible {
					visibleBases++
				}
			}
		}
	}
	if bases > 0 && visibleBases != 1 {
		errs = append(errs, fmt.Errorf("exactly one base layer must be visible, got %d", visibleBases))
	}

	return errors.Join(errs...)
}

// Layers returns every layer in the tree, group by group.
func (c *Config) Layers() []Layer {
	var out []Layer
	for _, g := range c.Groups {
		out = append(out, g.Layers...)
	}
	return out
}

// VectorLayerID returns the first vector layer's id, where routes are drawn.
func (c *Config) VectorLayerID() string {
	for _, l := range c.Layers() {
		if l.Kind == KindVector {
			return l.ID
		}
	}
	return ""
}

// Center3857 returns the initial center in EPSG:3857.
func (v View) Center3857() orb.Point {
	return mapview.FromLonLat(orb.Point{v.Center[0], v.Center[1]})
}

// Extent3857 returns the view restriction extent in EPSG:3857.
func (v View) Extent3857() orb.Bound {
	return mapview.TransformExtent(bound(v.Extent))
}

// Extent3857 returns the zoom-to-extent target in EPSG:3857.
func (z ZoomToExtent) Extent3857() orb.Bound {
	return mapview.TransformExtent(bound(z.Extent))
}

func bound(e [4]float64) orb.Bound {
	return orb.Bound{Min: orb.Point{e[0], e[1]}, Max: orb.Point{e[2], e[3]}}
}

func validExtent(e [4]float64) bool {
	return e[0] < e[2] && e[1] < e[3] &&
		e[0] >= -180 && e[2] <= 180 &&
		e[1] >= -85.06 && e[3] <= 85.06
}
