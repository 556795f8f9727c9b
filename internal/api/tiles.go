package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-camino/internal/tiler"
)

// TileTemplate is the XYZ URL template of the route vector tiles.
const TileTemplate = "/api/v1/tiles/{z}/{x}/{y}"

// TileJSON describes the route tile source.
type TileJSON struct {
	TileJSON     string        `json:"tilejson" example:"3.0.0"`
	Name         string        `json:"name" example:"caminos"`
	Tiles        []string      `json:"tiles" doc:"XYZ URL templates"`
	MinZoom      int           `json:"minzoom"`
	MaxZoom      int           `json:"maxzoom"`
	Bounds       [4]float64    `json:"bounds" doc:"minLon, minLat, maxLon, maxLat"`
	VectorLayers []VectorLayer `json:"vector_layers"`
}

type VectorLayer struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

type TileInput struct {
	Z int `path:"z" minimum:"0" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Column"`
	Y int `path:"y" minimum:"0" doc:"Row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	CacheControl    string `header:"Cache-Control"`
	Body            []byte
}

// RegisterTiles registers the route vector tiles.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/tiles", h.GetTileJSON, huma.OperationTags("tiles"))
	huma.Get(api, "/api/v1/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("tiles"))
}

func (h *APIHandler) GetTileJSON(ctx context.Context, input *struct{}) (*struct{ Body TileJSON }, error) {
	if h.svc.Tiles == nil {
		return nil, huma.Error503ServiceUnavailable("vector tiles not available")
	}
	b := h.svc.Routes.Collection().Bound()
	return &struct{ Body TileJSON }{Body: TileJSON{
		TileJSON: "3.0.0",
		Name:     tiler.LayerName,
		Tiles:    []string{TileTemplate},
		MinZoom:  0,
		MaxZoom:  tiler.MaxZoom,
		Bounds:   [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		VectorLayers: []VectorLayer{{
			ID:     tiler.LayerName,
			Fields: tiler.Fields(),
		}},
	}}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	if h.svc.Tiles == nil {
		return nil, huma.Error503ServiceUnavailable("vector tiles not available")
	}
	if input.Z > tiler.MaxZoom || input.X >= 1<<input.Z || input.Y >= 1<<input.Z {
		return nil, huma.Error404NotFound("tile out of range")
	}
	tile := maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z))
	data, err := h.svc.Tiles.Tile(tile)
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		CacheControl:    "public, max-age=3600",
		Body:            data,
	}, nil
}
