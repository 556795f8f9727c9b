package mapview

import (
	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/viewer"
)

// Canvas adapts a shared Scene to one viewer session. The browser reports
// its viewport with every event; the canvas keeps the latest one along with
// the cursor it last asked for. Layer visibility belongs to the session.
type Canvas struct {
	scene      *Scene
	visibility Visibility
	viewport   Viewport
	cursor     string
}

var _ viewer.Canvas = (*Canvas)(nil)

// NewCanvas creates a canvas over a scene. A nil visibility shows every
// layer.
func NewCanvas(scene *Scene, visibility Visibility) *Canvas {
	return &Canvas{scene: scene, visibility: visibility}
}

// SetViewport records the view the next pixels refer to.
func (c *Canvas) SetViewport(v Viewport) {
	c.viewport = v
}

// Viewport returns the current view.
func (c *Canvas) Viewport() Viewport {
	return c.viewport
}

// ForEachFeatureAtPixel implements viewer.Canvas.
func (c *Canvas) ForEachFeatureAtPixel(px viewer.Pixel, visit func(route.Feature) bool) {
	c.scene.ForEachFeatureAt(c.viewport, c.visibility, px.X, px.Y, visit)
}

// HasFeatureAtPixel implements viewer.Canvas.
func (c *Canvas) HasFeatureAtPixel(px viewer.Pixel) bool {
	return c.scene.HasFeatureAt(c.viewport, c.visibility, px.X, px.Y)
}

// SetCursor implements viewer.Canvas.
func (c *Canvas) SetCursor(cursor string) {
	c.cursor = cursor
}

// Cursor returns the pointer style last set.
func (c *Canvas) Cursor() string {
	return c.cursor
}
