package mapview

import (
	"math"

	"github.com/paulmach/orb"
)

// World extent of EPSG:3857 and the resolution at which it fits one
// 256 px tile.
const (
	WorldHalfExtent = 20037508.342789244
	MaxResolution   = 2 * WorldHalfExtent / 256
)

// Viewport is the view state the browser reports with each event: the
// EPSG:3857 center, map units per pixel and the canvas size in pixels.
type Viewport struct {
	Center     orb.Point
	Resolution float64
	Width      float64
	Height     float64
}

// Valid reports whether the viewport can map pixels to coordinates.
// Resolutions coarser than zoom 0 are refused.
func (v Viewport) Valid() bool {
	return v.Resolution > 0 && v.Resolution <= MaxResolution &&
		v.Width > 0 && v.Height > 0 &&
		!math.IsInf(v.Width, 0) && !math.IsInf(v.Height, 0) &&
		!math.IsNaN(v.Center[0]) && !math.IsNaN(v.Center[1])
}

// CoordinateAt maps a pixel (origin top-left, y down) to EPSG:3857.
func (v Viewport) CoordinateAt(x, y float64) orb.Point {
	return orb.Point{
		v.Center[0] + (x-v.Width/2)*v.Resolution,
		v.Center[1] + (v.Height/2-y)*v.Resolution,
	}
}

// PixelAt maps an EPSG:3857 coordinate to a viewport pixel.
func (v Viewport) PixelAt(c orb.Point) (x, y float64) {
	x = (c[0]-v.Center[0])/v.Resolution + v.Width/2
	y = v.Height/2 - (c[1]-v.Center[1])/v.Resolution
	return x, y
}
