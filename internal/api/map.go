package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-camino/internal/config"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/style"
)

// GeoJSONPath is where the styled geometry source is served.
const GeoJSONPath = "/data/caminos_santiago.geojson"

// MapInfo is everything the browser needs to build the map: the view, the
// controls, the overlay and the layer tree, with extents already in
// EPSG:3857.
type MapInfo struct {
	Title            string              `json:"title" doc:"Page title" example:"Caminos de Santiago"`
	View             config.View         `json:"view" doc:"Initial view in WGS84"`
	Center3857       [2]float64          `json:"center3857" doc:"Initial center in EPSG:3857"`
	Extent3857       [4]float64          `json:"extent3857" doc:"View restriction extent in EPSG:3857"`
	ZoomToExtent3857 [4]float64          `json:"zoomToExtent3857" doc:"Zoom-to-extent target in EPSG:3857"`
	Controls         config.Controls     `json:"controls" doc:"Map controls"`
	Overlay          config.Overlay      `json:"overlay" doc:"Popup overlay behaviour"`
	Layers           []service.LayerInfo `json:"layers" doc:"Layers in drawing order, bottom first"`
	Groups           []service.GroupInfo `json:"groups" doc:"Layer switcher groups"`
	GeoJSONURL       string              `json:"geojsonUrl" doc:"Styled route GeoJSON" example:"/data/caminos_santiago.geojson"`
	FallbackStyle    style.Style         `json:"fallbackStyle" doc:"Style for features without a resolved style"`
}

// BuildMapInfo assembles the map description from the configuration and the
// current layer state.
func BuildMapInfo(cfg *config.Config, layers *service.LayerService) MapInfo {
	return MapInfo{
		Title:            cfg.Title,
		View:             cfg.View,
		Center3857:       point(cfg.View.Center3857()),
		Extent3857:       bound(cfg.View.Extent3857()),
		ZoomToExtent3857: bound(cfg.Controls.ZoomToExtent.Extent3857()),
		Controls:         cfg.Controls,
		Overlay:          cfg.Overlay,
		Layers:           layers.List(),
		Groups:           layers.Groups(),
		GeoJSONURL:       GeoJSONPath,
		FallbackStyle:    style.Resolve(""),
	}
}

func point(p orb.Point) [2]float64 {
	return [2]float64{p[0], p[1]}
}

func bound(b orb.Bound) [4]float64 {
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// RegisterMap registers the map description and legend routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("map"))
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*struct{ Body MapInfo }, error) {
	return &struct{ Body MapInfo }{Body: BuildMapInfo(h.svc.Config, h.svc.Layers)}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body []style.LegendItem }, error) {
	return &struct{ Body []style.LegendItem }{Body: style.Legend()}, nil
}
