package viewer

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-camino/internal/route"
)

// Cursor values for the map target element.
const (
	CursorPointer = "pointer"
	CursorDefault = ""
)

// Canvas is the map-canvas collaborator: hit-testing over the rendered
// scene and the pointer style of the map element.
type Canvas interface {
	// ForEachFeatureAtPixel visits the features under px, top-most first,
	// until visit returns true.
	ForEachFeatureAtPixel(px Pixel, visit func(route.Feature) bool)
	HasFeatureAtPixel(px Pixel) bool
	SetCursor(cursor string)
}

// Overlay positions the popup container. A nil position hides it.
type Overlay interface {
	SetPosition(position *orb.Point)
}

// Surface is the popup markup: a content region and a close affordance.
type Surface interface {
	SetContent(html string)
	BlurCloser()
}

// Attributes is the read-only projection of a route shown in the popup.
type Attributes struct {
	Group    string  `json:"group"`
	LengthKm float64 `json:"lengthKm"`
	Country  string  `json:"country"`
	InfoURL  string  `json:"infoUrl"`
}

// AttributesOf extracts the popup attributes of a feature.
func AttributesOf(f route.Feature) Attributes {
	return Attributes{
		Group:    f.Group,
		LengthKm: f.LengthKm,
		Country:  f.Country,
		InfoURL:  f.InfoURL,
	}
}
