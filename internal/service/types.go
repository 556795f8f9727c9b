// Package service contains the business logic behind the camino viewer:
// the layer tree, the route catalog, viewer sessions and the event bus.
package service

// LayerInfo is a layer of the map with its current visibility.
type LayerInfo struct {
	ID           string            `json:"id" doc:"Layer identifier" example:"pnoa"`
	Title        string            `json:"title" doc:"Display title" example:"PNOA"`
	Group        string            `json:"group" doc:"Group identifier" example:"mapas_base"`
	GroupTitle   string            `json:"groupTitle" doc:"Group title" example:"Mapas Base"`
	Kind         string            `json:"kind" enum:"osm,wms,vector" doc:"Source kind" example:"wms"`
	Base         bool              `json:"base" doc:"Whether this is a base layer (only one visible at a time)"`
	Visible      bool              `json:"visible" doc:"Current visibility"`
	URL          string            `json:"url,omitempty" doc:"Source URL" example:"https://www.ign.es/wms-inspire/pnoa-ma?"`
	Params       map[string]string `json:"params,omitempty" doc:"WMS request parameters"`
	Attributions string            `json:"attributions,omitempty" doc:"Attribution HTML"`
}

// GroupInfo is a folder of the layer switcher.
type GroupInfo struct {
	ID     string   `json:"id" doc:"Group identifier" example:"capas_tematicas"`
	Title  string   `json:"title" doc:"Group title" example:"Capas Temáticas"`
	Fold   string   `json:"fold,omitempty" doc:"Initial fold state" example:"open"`
	Layers []string `json:"layers" doc:"Layer ids in drawing order, bottom first"`
}

// RouteSummary is a route with its resolved color.
type RouteSummary struct {
	ID       string  `json:"id" doc:"Route identifier" example:"camino_frances"`
	Name     string  `json:"name" doc:"Route name" example:"Camino Francés"`
	Group    string  `json:"group" doc:"Route family" example:"Camino Francés"`
	LengthKm float64 `json:"lengthKm" doc:"Length in kilometres" example:"764"`
	Country  string  `json:"country" doc:"Country" example:"España"`
	InfoURL  string  `json:"infoUrl,omitempty" doc:"More information" example:"https://example.org/cf"`
	Color    string  `json:"color" doc:"Stroke color" example:"gold"`
}

// GroupSummary aggregates the routes of one family.
type GroupSummary struct {
	Group   string  `json:"group" doc:"Route family" example:"Caminos del Norte"`
	Color   string  `json:"color" doc:"Stroke color" example:"red"`
	Routes  int     `json:"routes" doc:"Number of routes"`
	TotalKm float64 `json:"totalKm" doc:"Sum of route lengths in kilometres"`
}

// SourceInfo describes the geometry source file.
type SourceInfo struct {
	Path     string `json:"path" doc:"Source path" example:"data/caminos_santiago.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Features int    `json:"features" doc:"Number of routes loaded"`
	Loaded   bool   `json:"loaded" doc:"Whether the source loaded"`
	Error    string `json:"error,omitempty" doc:"Load error, when the viewer fell back to an empty scene"`
}
