package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/service"
)

var (
	showLayer = humastar.ActionDef{Rel: "show", Pattern: "/api/v1/sessions/%s/layers/%s/visibility", Method: "PUT", Title: "Mostrar"}
	hideLayer = humastar.ActionDef{Rel: "hide", Pattern: "/api/v1/sessions/%s/layers/%s/visibility", Method: "PUT", Title: "Ocultar"}
)

// LayerTree is the whole layer switcher.
type LayerTree struct {
	Layers []service.LayerInfo `json:"layers" doc:"Layers in drawing order, bottom first"`
	Groups []service.GroupInfo `json:"groups" doc:"Layer groups"`
}

// LayerBody is one layer with the visibility actions it allows. Session is
// empty for the configured defaults, which offer no actions.
type LayerBody struct {
	service.LayerInfo
	Session string `json:"-"`
}

// Actions offers show for hidden layers and hide for visible overlays. The
// visible base layer offers nothing: another base must be shown instead.
func (b LayerBody) Actions() []humastar.Action {
	switch {
	case b.Session == "":
		return nil
	case !b.Visible:
		return []humastar.Action{showLayer.Action(b.Session, b.ID)}
	case !b.Base:
		return []humastar.Action{hideLayer.Action(b.Session, b.ID)}
	}
	return nil
}

type SessionInput struct {
	Session string `path:"session" doc:"Viewer session ID" example:"0f8c2a6e-6a8e-4b8e-9a53-1d1f0c2b7e11"`
}

type SessionLayerInput struct {
	SessionInput
	IDInput
}

type VisibilityInput struct {
	SessionLayerInput
	Body struct {
		Visible bool `json:"visible" doc:"Whether the layer is shown"`
	}
}

// RegisterLayers registers the layer tree routes. The top-level routes show
// the configured defaults; visibility changes belong to a viewer session.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/sessions/{session}/layers", h.GetSessionLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/sessions/{session}/layers/{id}", h.GetSessionLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/sessions/{session}/layers/{id}/visibility", h.PutVisibility, huma.OperationTags("layers"))
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayerTree }, error) {
	return &struct{ Body LayerTree }{Body: LayerTree{
		Layers: h.svc.Layers.List(),
		Groups: h.svc.Layers.Groups(),
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*struct{ Body LayerBody }, error) {
	layer, ok := h.svc.Layers.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not found", input.ID))
	}
	return &struct{ Body LayerBody }{Body: LayerBody{LayerInfo: layer}}, nil
}

func (h *APIHandler) sessionLayers(id string) (*service.LayerState, error) {
	if h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("Sessions not available")
	}
	sess, ok := h.svc.Sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("session %q not found", id))
	}
	return sess.Layers, nil
}

func (h *APIHandler) GetSessionLayers(ctx context.Context, input *SessionInput) (*struct{ Body LayerTree }, error) {
	state, err := h.sessionLayers(input.Session)
	if err != nil {
		return nil, err
	}
	return &struct{ Body LayerTree }{Body: LayerTree{
		Layers: state.List(),
		Groups: h.svc.Layers.Groups(),
	}}, nil
}

func (h *APIHandler) GetSessionLayer(ctx context.Context, input *SessionLayerInput) (*struct{ Body LayerBody }, error) {
	state, err := h.sessionLayers(input.Session)
	if err != nil {
		return nil, err
	}
	layer, ok := state.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not found", input.ID))
	}
	return &struct{ Body LayerBody }{Body: LayerBody{LayerInfo: layer, Session: input.Session}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body LayerBody }, error) {
	state, err := h.sessionLayers(input.Session)
	if err != nil {
		return nil, err
	}
	layer, err := state.SetVisible(input.ID, input.Body.Visible)
	switch {
	case errors.Is(err, service.ErrLayerNotFound):
		return nil, huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrBaseRequired):
		return nil, huma.Error409Conflict(err.Error())
	case err != nil:
		return nil, huma.Error500InternalServerError("Failed to change visibility", err)
	}
	return &struct{ Body LayerBody }{Body: LayerBody{LayerInfo: layer, Session: input.Session}}, nil
}
