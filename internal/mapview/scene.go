package mapview

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/style"
)

// IndexZoom is the tile zoom used to bucket features for hit-testing.
const IndexZoom maptile.Zoom = 8

// DefaultHitTolerance is the pick radius in pixels added beyond half the
// stroke width.
const DefaultHitTolerance = 2

// generalizations are the Douglas-Peucker tolerances (metres) of the
// simplified copies kept per feature. Index 0 is the full geometry.
var generalizations = []float64{0, 100, 1000, 10000}

// Visibility reports whether a layer is currently drawn.
type Visibility interface {
	Visible(layerID string) bool
}

// Scene holds the projected features of every vector layer in draw order.
// It is shared by all sessions and read-only once its layers are added;
// visibility is supplied per query.
type Scene struct {
	mu     sync.RWMutex
	layers []*vectorLayer
	// hitTolerance is the extra pick radius in pixels beyond half the stroke.
	hitTolerance float64
}

type vectorLayer struct {
	id    string
	items []item
	index map[maptile.Tile][]int
}

type item struct {
	feature route.Feature
	style   style.Style
	bound   orb.Bound
	// geoms[i] is the geometry simplified with generalizations[i].
	geoms []orb.Geometry
}

// NewScene creates an empty scene.
func NewScene(hitTolerance float64) *Scene {
	if hitTolerance < 0 {
		hitTolerance = 0
	}
	return &Scene{hitTolerance: hitTolerance}
}

// AddLayer projects a collection and stacks it on top of existing layers.
// Styles are resolved once here, at render time.
func (s *Scene) AddLayer(id string, c *route.Collection, resolver *style.Resolver) {
	l := &vectorLayer{id: id, index: make(map[maptile.Tile][]int)}
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		projected := projectGeometry(f.Geometry)
		it := item{
			feature: f,
			style:   resolver.ResolveFeature(f),
			bound:   projected.Bound(),
			geoms:   make([]orb.Geometry, len(generalizations)),
		}
		it.geoms[0] = projected
		for i := 1; i < len(generalizations); i++ {
			it.geoms[i] = simplifyGeometry(projected, generalizations[i])
		}

		n := len(l.items)
		l.items = append(l.items, it)
		for _, t := range tilesInBounds(f.Bound(), IndexZoom) {
			l.index[t] = append(l.index[t], n)
		}
	}

	s.mu.Lock()
	s.layers = append(s.layers, l)
	s.mu.Unlock()
}

// Len returns the number of drawable features across all layers.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.layers {
		n += len(l.items)
	}
	return n
}

// StyleOf returns the resolved style of a feature by ID.
func (s *Scene) StyleOf(id string) (style.Style, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.layers {
		for _, it := range l.items {
			if it.feature.ID == id {
				return it.style, true
			}
		}
	}
	return style.Style{}, false
}

// ForEachFeatureAt visits the features under a viewport pixel, top-most
// first: later layers before earlier ones and, within a layer, later
// features before earlier ones. Layers vis hides are skipped; a nil vis
// shows every layer. visit returns true to stop.
func (s *Scene) ForEachFeatureAt(v Viewport, vis Visibility, x, y float64, visit func(route.Feature) bool) {
	if !v.Valid() {
		return
	}
	at := v.CoordinateAt(x, y)
	tol := (float64(style.StrokeWidth)/2 + s.hitTolerance) * v.Resolution
	level := generalizationFor(tol)
	query := orb.Bound{
		Min: orb.Point{at[0] - tol, at[1] - tol},
		Max: orb.Point{at[0] + tol, at[1] + tol},
	}
	tiles := tilesInBounds(mercatorToLonLatBound(query), IndexZoom)

	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()

	for li := len(layers) - 1; li >= 0; li-- {
		l := layers[li]
		if vis != nil && !vis.Visible(l.id) {
			continue
		}
		for _, n := range l.candidates(tiles) {
			it := l.items[n]
			if !it.bound.Pad(tol).Contains(at) {
				continue
			}
			if !hits(it.geoms[level], at, tol) {
				continue
			}
			if visit(it.feature) {
				return
			}
		}
	}
}

// HasFeatureAt reports whether any visible feature is under the pixel.
func (s *Scene) HasFeatureAt(v Viewport, vis Visibility, x, y float64) bool {
	found := false
	s.ForEachFeatureAt(v, vis, x, y, func(route.Feature) bool {
		found = true
		return true
	})
	return found
}

// candidates returns the item indexes bucketed in the tiles, highest
// (top-most) first and without duplicates.
func (l *vectorLayer) candidates(tiles []maptile.Tile) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, t := range tiles {
		for _, n := range l.index[t] {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// hits tests a projected geometry against a point with a tolerance in
// map units. Areas hit on their interior as well as their outline.
func hits(g orb.Geometry, p orb.Point, tol float64) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return true
		}
	case orb.Collection:
		for _, sub := range geom {
			if hits(sub, p, tol) {
				return true
			}
		}
		return false
	}
	return planar.DistanceFrom(g, p) <= tol
}

// generalizationFor picks the coarsest simplified copy whose error stays
// well under the pick tolerance.
func generalizationFor(tol float64) int {
	level := 0
	for i, eps := range generalizations {
		if eps <= tol/4 {
			level = i
		}
	}
	return level
}

func projectGeometry(g orb.Geometry) orb.Geometry {
	// project.Geometry works in place; the route feature must stay in WGS84.
	return projectInPlace(orb.Clone(g))
}

func simplifyGeometry(g orb.Geometry, eps float64) orb.Geometry {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return g
	}
	return simplify.DouglasPeucker(eps).Simplify(orb.Clone(g))
}
