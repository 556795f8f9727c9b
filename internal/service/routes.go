package service

import (
	"encoding/json"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/style"
)

// StyleProperty is the feature property carrying the resolved style in
// served GeoJSON.
const StyleProperty = "style"

// RouteService is the read-only route catalog.
type RouteService struct {
	routes   *route.Collection
	resolver *style.Resolver
}

// NewRouteService creates a catalog over loaded routes.
func NewRouteService(routes *route.Collection, resolver *style.Resolver) *RouteService {
	if routes == nil {
		routes = route.Empty()
	}
	if resolver == nil {
		resolver = style.NewResolver()
	}
	return &RouteService{routes: routes, resolver: resolver}
}

// Collection returns the underlying routes.
func (s *RouteService) Collection() *route.Collection {
	return s.routes
}

// Resolver returns the style cache shared with the scene.
func (s *RouteService) Resolver() *style.Resolver {
	return s.resolver
}

// Len returns the number of routes.
func (s *RouteService) Len() int {
	return s.routes.Len()
}

// List returns a page of routes and the total count.
func (s *RouteService) List(offset, limit int) ([]RouteSummary, int) {
	total := s.routes.Len()
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]RouteSummary, 0, end-offset)
	for _, f := range s.routes.Features[offset:end] {
		page = append(page, s.summary(f))
	}
	return page, total
}

// Get returns one route.
func (s *RouteService) Get(id string) (RouteSummary, bool) {
	f, ok := s.routes.Get(id)
	if !ok {
		return RouteSummary{}, false
	}
	return s.summary(f), true
}

// Groups totals routes per family, sorted by group name.
func (s *RouteService) Groups() []GroupSummary {
	byGroup := map[string]*GroupSummary{}
	for _, f := range s.routes.Features {
		g, ok := byGroup[f.Group]
		if !ok {
			g = &GroupSummary{Group: f.Group, Color: s.resolver.ResolveFeature(f).Stroke.Color}
			byGroup[f.Group] = g
		}
		g.Routes++
		g.TotalKm += f.LengthKm
	}

	out := make([]GroupSummary, 0, len(byGroup))
	for _, g := range byGroup {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// StyledGeoJSON encodes the routes as a FeatureCollection with the resolved
// style in each feature's properties.
func (s *RouteService) StyledGeoJSON() ([]byte, error) {
	fc := s.routes.FeatureCollection(func(f route.Feature, props geojson.Properties) {
		props[StyleProperty] = s.resolver.ResolveFeature(f)
	})
	return json.Marshal(fc)
}

func (s *RouteService) summary(f route.Feature) RouteSummary {
	return RouteSummary{
		ID:       f.ID,
		Name:     f.Name,
		Group:    f.Group,
		LengthKm: f.LengthKm,
		Country:  f.Country,
		InfoURL:  f.InfoURL,
		Color:    s.resolver.ResolveFeature(f).Stroke.Color,
	}
}
