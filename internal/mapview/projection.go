// Package mapview is the map-canvas side of the viewer: it projects the
// loaded routes to Web Mercator, indexes them by tile and answers
// hit-testing queries for viewport pixels.
package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// FromLonLat projects a WGS84 lon/lat point to EPSG:3857.
func FromLonLat(p orb.Point) orb.Point {
	return project.WGS84.ToMercator(p)
}

// ToLonLat converts an EPSG:3857 point back to WGS84.
func ToLonLat(p orb.Point) orb.Point {
	return project.Mercator.ToWGS84(p)
}

// TransformExtent converts a WGS84 bound to EPSG:3857. Mercator is monotonic
// on both axes so transforming the corners is exact.
func TransformExtent(b orb.Bound) orb.Bound {
	return orb.Bound{Min: FromLonLat(b.Min), Max: FromLonLat(b.Max)}
}

// mercatorToLonLatBound converts an EPSG:3857 bound back to WGS84, clipped
// to the Mercator world.
func mercatorToLonLatBound(b orb.Bound) orb.Bound {
	return orb.Bound{Min: ToLonLat(clampWorld(b.Min)), Max: ToLonLat(clampWorld(b.Max))}
}

func clampWorld(p orb.Point) orb.Point {
	for i := range p {
		p[i] = math.Max(-WorldHalfExtent, math.Min(WorldHalfExtent, p[i]))
	}
	return p
}

// tilesInBounds returns all tiles at a zoom level that intersect a
// lon/lat bounding box. Parts of the box outside the tile grid are ignored.
func tilesInBounds(bounds orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	minTile := maptile.At(clampLonLat(bounds.Min), zoom)
	maxTile := maptile.At(clampLonLat(bounds.Max), zoom)

	// Tile Y grows southwards, so min/max swap between the corners.
	minX, maxX := minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	last := uint32(1)<<zoom - 1
	maxX, maxY = min(maxX, last), min(maxY, last)
	if minX > maxX || minY > maxY {
		return nil
	}

	tiles := make([]maptile.Tile, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// maxLat is the latitude of the Mercator world's edge.
const maxLat = 85.05112877980659

func clampLonLat(p orb.Point) orb.Point {
	return orb.Point{
		math.Max(-180, math.Min(180, p[0])),
		math.Max(-maxLat, math.Min(maxLat, p[1])),
	}
}

func projectInPlace(g orb.Geometry) orb.Geometry {
	return project.Geometry(g, project.WGS84.ToMercator)
}
