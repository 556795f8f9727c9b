package viewer

// Cursor switches the pointer affordance while hovering routes.
type Cursor struct {
	canvas Canvas
}

// NewCursor creates cursor feedback over a canvas.
func NewCursor(canvas Canvas) *Cursor {
	return &Cursor{canvas: canvas}
}

// OnHover sets the pointer cursor iff a feature is under px. Nothing
// changes while the map is being dragged.
func (c *Cursor) OnHover(px Pixel, dragging bool) {
	if dragging {
		return
	}
	if c.canvas.HasFeatureAtPixel(px) {
		c.canvas.SetCursor(CursorPointer)
		return
	}
	c.canvas.SetCursor(CursorDefault)
}
