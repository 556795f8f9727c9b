// Package ui contains the Datastar SSE handlers behind the viewer page.
//
// The browser forwards map-canvas events together with the view they
// happened in; each handler runs the event through the viewer session and
// patches back the cursor, popup signals and popup markup.
package ui

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/mapview"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/templates"
	"github.com/joeblew999/plat-camino/internal/viewer"
)

const (
	// Tag marks the operations the viewer page discovers by operation ID.
	Tag    = "ui"
	Prefix = "/api/v1/ui"
	// TogglePrefix is joined with a layer id and "/toggle" by the layer
	// switcher fragments.
	TogglePrefix = Prefix + "/layers/"
)

// ViewerSignals is the signal set of the viewer page. Defaults seed the
// page's data-signals.
type ViewerSignals struct {
	Session      string  `json:"session" doc:"Viewer session id"`
	Px           float64 `json:"px" doc:"Event pixel x"`
	Py           float64 `json:"py" doc:"Event pixel y"`
	Cx           float64 `json:"cx" doc:"Event coordinate x (EPSG:3857)"`
	Cy           float64 `json:"cy" doc:"Event coordinate y (EPSG:3857)"`
	Res          float64 `json:"res" doc:"Map units per pixel"`
	Width        float64 `json:"width" doc:"Canvas width in pixels"`
	Height       float64 `json:"height" doc:"Canvas height in pixels"`
	CenterX      float64 `json:"centerx" doc:"View center x (EPSG:3857)"`
	CenterY      float64 `json:"centery" doc:"View center y (EPSG:3857)"`
	Dragging     bool    `json:"dragging" doc:"Whether the map is being dragged"`
	PopupVisible bool    `json:"popupvisible" doc:"Whether the popup shows"`
	PopupX       float64 `json:"popupx" doc:"Popup anchor x (EPSG:3857)"`
	PopupY       float64 `json:"popupy" doc:"Popup anchor y (EPSG:3857)"`
	Cursor       string  `json:"cursor" doc:"Cursor over the map"`
	PanelOpen    bool    `json:"panelopen" default:"true" doc:"Whether the layer panel is open"`
	Error        string  `json:"error" doc:"Last error message"`
}

// ViewerHandler serves the viewer's interaction endpoints.
type ViewerHandler struct {
	humastar.Handler
	sessions *service.SessionService
	layers   *service.LayerService
	routes   *service.RouteService
	bus      *service.EventBus
}

func NewViewerHandler(renderer *templates.Renderer, sessions *service.SessionService, layers *service.LayerService, routes *service.RouteService, bus *service.EventBus) *ViewerHandler {
	return &ViewerHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		layers:   layers,
		routes:   routes,
		bus:      bus,
	}
}

func operation(id string) func(*huma.Operation) {
	return func(o *huma.Operation) {
		o.OperationID = id
		o.Tags = append(o.Tags, Tag)
	}
}

func (h *ViewerHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, Prefix+"/session", h.StartSession, operation("ui-session"))
	huma.Post(api, Prefix+"/click", h.Click, operation("ui-click"))
	huma.Post(api, Prefix+"/hover", h.Hover, operation("ui-hover"))
	huma.Post(api, Prefix+"/dismiss", h.Dismiss, operation("ui-dismiss"))
	huma.Get(api, Prefix+"/layers", h.Layers, operation("ui-layers"))
	huma.Post(api, Prefix+"/layers/{id}/toggle", h.ToggleLayer, operation("ui-layer-toggle"))
	huma.Get(api, Prefix+"/legend", h.Legend, operation("ui-legend"))
	huma.Get(api, Prefix+"/events", h.Events, operation("ui-events"))
}

// StartSession binds the page to a session, reusing the posted one while
// it is alive.
func (h *ViewerHandler) StartSession(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	sess := h.sessions.Ensure(signals.String("session"))
	snap, err := h.sessions.Snapshot(sess.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Session lost", err)
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(popupSignals(snap))
	}), nil
}

// Click picks the top-most route under the pointer and shows or hides the
// popup.
func (h *ViewerHandler) Click(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	snap, err := h.handle(signals, viewer.SingleClick)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if snap.Popup.Visible {
			sse.Patch(snap.Popup.HTML, "#popup-content")
		}
		sse.Signals(popupSignals(snap))
	}), nil
}

// Hover updates the cursor only.
func (h *ViewerHandler) Hover(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	snap, err := h.handle(signals, viewer.PointerMove)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"session": snap.Session, "cursor": snap.Cursor})
	}), nil
}

// Dismiss closes the popup from its close control.
func (h *ViewerHandler) Dismiss(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	sess := h.sessions.Ensure(signals.String("session"))
	snap, err := h.sessions.Dismiss(sess.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Session lost", err)
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(popupSignals(snap))
		if snap.BlurCloser {
			sse.Blur("popup-closer")
		}
	}), nil
}

func (h *ViewerHandler) handle(signals humastar.Signals, t viewer.EventType) (service.Snapshot, error) {
	sess := h.sessions.Ensure(signals.String("session"))
	snap, err := h.sessions.Handle(sess.ID, Viewport(signals), Event(t, signals))
	if err != nil {
		return service.Snapshot{}, huma.Error500InternalServerError("Session lost", err)
	}
	return snap, nil
}

// Viewport reads the view the browser reported with an event.
func Viewport(s humastar.Signals) mapview.Viewport {
	return mapview.Viewport{
		Center:     orb.Point{s.Float("centerx"), s.Float("centery")},
		Resolution: s.Float("res"),
		Width:      s.Float("width"),
		Height:     s.Float("height"),
	}
}

// Event reads a map-canvas event of type t from the posted signals.
func Event(t viewer.EventType, s humastar.Signals) viewer.Event {
	return viewer.Event{
		Type:       t,
		Pixel:      viewer.Pixel{X: s.Float("px"), Y: s.Float("py")},
		Coordinate: orb.Point{s.Float("cx"), s.Float("cy")},
		Dragging:   s.Bool("dragging"),
	}
}

func popupSignals(snap service.Snapshot) map[string]any {
	var x, y float64
	if a := snap.Popup.Anchor; a != nil {
		x, y = a[0], a[1]
	}
	return map[string]any{
		"session":      snap.Session,
		"cursor":       snap.Cursor,
		"popupvisible": snap.Popup.Visible,
		"popupx":       x,
		"popupy":       y,
		"error":        "",
	}
}
