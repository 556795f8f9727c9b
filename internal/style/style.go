// Package style resolves the visual style of route features.
//
// The palette maps a route group to a color token. Lookups are exact and
// case-sensitive; groups outside the palette draw in [FallbackColor].
package style

import (
	"sync"

	"github.com/joeblew999/plat-camino/internal/route"
)

// Drawing constants shared by every route style.
const (
	FallbackColor = "gray"
	StrokeWidth   = 3
	FillColor     = "rgba(255, 255, 255, 0.6)"
)

// Stroke is the outline of a route.
type Stroke struct {
	Color string  `json:"color" doc:"Stroke color token" example:"gold"`
	Width float64 `json:"width" doc:"Stroke width" example:"3"`
}

// Fill is the interior of a route geometry.
type Fill struct {
	Color string `json:"color" doc:"Fill color (CSS)" example:"rgba(255, 255, 255, 0.6)"`
}

// Style is the resolved drawing style for one feature.
type Style struct {
	Stroke Stroke `json:"stroke"`
	Fill   Fill   `json:"fill"`
}

// LegendItem is a group and the color it is drawn with.
type LegendItem struct {
	Group string `json:"group" doc:"Route group" example:"Camino Francés"`
	Color string `json:"color" doc:"Stroke color token" example:"gold"`
}

// palette is ordered as it appears in the legend.
var palette = []LegendItem{
	{"Caminos del Norte", "red"},
	{"Caminos del Sureste", "blue"},
	{"Caminos Andaluces", "green"},
	{"Caminos Insulares", "orange"},
	{"Caminos del Este", "purple"},
	{"Caminos del Centro", "brown"},
	{"Caminos Portugueses", "teal"},
	{"Caminos de Galicia", "navy"},
	{"Voie Turonensis - Paris", "crimson"},
	{"Camino Francés", "gold"},
	{"Caminos Catalanes", "darkgreen"},
	{"Chemins vers Via des Piemonts", "indigo"},
	{"Chemins vers Via Turonensis", "darkorange"},
	{"Via Tolosana Arles", "darkred"},
	{"Voie des Piemonts", "dodgerblue"},
}

var colors = func() map[string]string {
	m := make(map[string]string, len(palette))
	for _, item := range palette {
		m[item.Group] = item.Color
	}
	return m
}()

// Color returns the palette color for a group, or FallbackColor.
func Color(group string) string {
	if c, ok := colors[group]; ok {
		return c
	}
	return FallbackColor
}

// Known reports whether the group has its own palette entry.
func Known(group string) bool {
	_, ok := colors[group]
	return ok
}

// Resolve returns the style for a group. It never fails.
func Resolve(group string) Style {
	return Style{
		Stroke: Stroke{Color: Color(group), Width: StrokeWidth},
		Fill:   Fill{Color: FillColor},
	}
}

// Legend returns the palette in display order followed by the fallback.
func Legend() []LegendItem {
	items := make([]LegendItem, len(palette), len(palette)+1)
	copy(items, palette)
	return append(items, LegendItem{Group: "", Color: FallbackColor})
}

// Resolver caches resolved styles per group. Safe for concurrent use.
type Resolver struct {
	mu     sync.RWMutex
	styles map[string]Style
}

// NewResolver creates an empty resolver cache.
func NewResolver() *Resolver {
	return &Resolver{styles: make(map[string]Style)}
}

// ResolveFeature returns the style for a feature's group.
func (r *Resolver) ResolveFeature(f route.Feature) Style {
	r.mu.RLock()
	s, ok := r.styles[f.Group]
	r.mu.RUnlock()
	if ok {
		return s
	}

	s = Resolve(f.Group)
	r.mu.Lock()
	r.styles[f.Group] = s
	r.mu.Unlock()
	return s
}
