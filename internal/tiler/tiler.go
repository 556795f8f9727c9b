// Package tiler cuts the route collection into Mapbox vector tiles, on
// demand for the tile endpoint or all at once into a PMTiles archive.
package tiler

import (
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/pmtiles"
	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/style"
)

const (
	// LayerName is the MVT layer holding the routes.
	LayerName = "caminos"
	MaxZoom   = 14
	// CacheTiles bounds the encoded tiles kept in memory.
	CacheTiles = 4096

	PropColor = "color"
	PropWidth = "width"
)

// Fields returns the properties every tile feature carries, with their
// TileJSON types.
func Fields() map[string]string {
	return map[string]string{
		route.PropName:    "String",
		route.PropGroup:   "String",
		route.PropLength:  "Number",
		route.PropCountry: "String",
		route.PropInfoURL: "String",
		PropColor:         "String",
		PropWidth:         "Number",
	}
}

// Tiler encodes gzipped MVT tiles of a route collection. The most recently
// used non-empty tiles are cached; the collection must not change
// afterwards.
type Tiler struct {
	features []*geojson.Feature
	cache    *lru.Cache[maptile.Tile, []byte]
}

// New prepares a tiler. Each feature carries the route properties and its
// resolved stroke as the MVT properties listed by Fields.
func New(routes *route.Collection, resolver *style.Resolver) *Tiler {
	if resolver == nil {
		resolver = style.NewResolver()
	}
	fc := routes.FeatureCollection(func(f route.Feature, props geojson.Properties) {
		s := resolver.ResolveFeature(f)
		props[PropColor] = s.Stroke.Color
		props[PropWidth] = s.Stroke.Width
	})
	cache, err := lru.New[maptile.Tile, []byte](CacheTiles)
	if err != nil {
		panic(err)
	}
	return &Tiler{features: fc.Features, cache: cache}
}

// Tile returns the encoded tile, or nil when no route crosses it.
func (t *Tiler) Tile(tile maptile.Tile) ([]byte, error) {
	if tile.Z > MaxZoom || !tile.Valid() {
		return nil, fmt.Errorf("tile %d/%d/%d out of range", tile.Z, tile.X, tile.Y)
	}

	if data, ok := t.cache.Get(tile); ok {
		return data, nil
	}

	data, err := t.encode(tile)
	if err != nil || data == nil {
		return nil, err
	}
	t.cache.Add(tile, data)
	return data, nil
}

func (t *Tiler) encode(tile maptile.Tile) ([]byte, error) {
	bound := tile.Bound()
	fc := geojson.NewFeatureCollection()
	for _, f := range t.features {
		if !f.Geometry.Bound().Intersects(bound) {
			continue
		}
		// Clip and ProjectToTile rewrite coordinates in place.
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		fc.Append(clone)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(LayerName, fc)
	if eps := simplifyEpsilon(tile.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(bound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// simplifyEpsilon is the Douglas-Peucker tolerance in degrees per zoom.
// Routes are long lines, so low zooms can drop a lot of detail.
func simplifyEpsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 12:
		return 0
	case z >= 9:
		return 0.0005
	case z >= 6:
		return 0.005
	default:
		return 0.02
	}
}

// Covering returns the tiles at zoom z that the routes' bounds touch.
func (t *Tiler) Covering(z maptile.Zoom) []maptile.Tile {
	var tiles []maptile.Tile
	seen := make(map[maptile.Tile]bool)
	for _, f := range t.features {
		for _, tile := range tilesInBounds(f.Geometry.Bound(), z) {
			if !seen[tile] {
				seen[tile] = true
				tiles = append(tiles, tile)
			}
		}
	}
	return tiles
}

func tilesInBounds(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	lo := maptile.At(orb.Point{b.Min[0], b.Max[1]}, z)
	hi := maptile.At(orb.Point{b.Max[0], b.Min[1]}, z)

	var tiles []maptile.Tile
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}
	return tiles
}

// ExportStats summarizes an archive export.
type ExportStats struct {
	Tiles int
	Bytes uint64
}

// Export writes every non-empty tile from minZoom to maxZoom as a PMTiles
// archive.
func (t *Tiler) Export(w io.Writer, minZoom, maxZoom maptile.Zoom) (ExportStats, error) {
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	if minZoom > maxZoom {
		return ExportStats{}, fmt.Errorf("min zoom %d above max zoom %d", minZoom, maxZoom)
	}

	var tiles []pmtiles.Tile
	var bound orb.Bound
	for i, f := range t.features {
		if i == 0 {
			bound = f.Geometry.Bound()
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}

	for z := minZoom; z <= maxZoom; z++ {
		for _, tile := range t.Covering(z) {
			data, err := t.Tile(tile)
			if err != nil {
				return ExportStats{}, err
			}
			if data == nil {
				continue
			}
			tiles = append(tiles, pmtiles.Tile{Z: uint8(tile.Z), X: tile.X, Y: tile.Y, Data: data})
		}
		log.Debug().Uint32("zoom", uint32(z)).Int("tiles", len(tiles)).Msg("Zoom level tiled")
	}

	h, err := pmtiles.Write(w, pmtiles.Archive{
		Name:        LayerName,
		MinZoom:     uint8(minZoom),
		MaxZoom:     uint8(maxZoom),
		Bounds:      [4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]},
		Center:      [2]float64{bound.Center()[0], bound.Center()[1]},
		CenterZoom:  uint8(minZoom),
		Compression: pmtiles.Gzip,
		Metadata: map[string]any{
			"format": "pbf",
			"vector_layers": []map[string]any{{
				"id":     LayerName,
				"fields": Fields(),
			}},
		},
	}, tiles)
	if err != nil {
		return ExportStats{}, err
	}
	return ExportStats{Tiles: len(tiles), Bytes: h.DataOffset + h.DataLength}, nil
}
