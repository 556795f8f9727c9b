package viewer

import "github.com/joeblew999/plat-camino/internal/route"

// Picker finds the route under a clicked pixel.
type Picker struct {
	canvas Canvas
}

// NewPicker creates a picker over a canvas.
func NewPicker(canvas Canvas) *Picker {
	return &Picker{canvas: canvas}
}

// PickAt returns the attributes of the first feature the canvas reports
// at px, or nil when nothing is there. It never mutates anything.
func (p *Picker) PickAt(px Pixel) *Attributes {
	var picked *Attributes
	p.canvas.ForEachFeatureAtPixel(px, func(f route.Feature) bool {
		attrs := AttributesOf(f)
		picked = &attrs
		return true
	})
	return picked
}
