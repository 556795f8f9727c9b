package ui

import (
	"context"
	"errors"
	"html/template"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/service"
)

// layerGroupView is the data of the layer-group fragment.
type layerGroupView struct {
	ID           string
	Title        string
	Open         bool
	Base         bool
	Options      template.HTML
	Layers       []service.LayerInfo
	TogglePrefix string
}

// layerView is a layer tree with visibility, either the configured defaults
// or one session's state.
type layerView interface {
	List() []service.LayerInfo
	Get(id string) (service.LayerInfo, bool)
}

type ToggleInput struct {
	ID      string `path:"id" doc:"Layer ID" example:"pnoa"`
	RawBody []byte
}

// Layers renders the layer switcher of the page's session, or the defaults
// when the session is unknown.
func (h *ViewerHandler) Layers(ctx context.Context, input *humastar.SignalsQuery) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	view := h.layerView(signals.String("session"))
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderLayers(view), "#layer-switcher")
	}), nil
}

// ToggleLayer flips a layer for the posting session and tells the map which
// layers now show.
func (h *ViewerHandler) ToggleLayer(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).MustParse()
	if err != nil {
		return nil, err
	}
	sess := h.sessions.Ensure(signals.String("session"))
	_, err = sess.Layers.Toggle(input.ID)
	if errors.Is(err, service.ErrLayerNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
		}
		sse.Signals(map[string]any{"session": sess.ID})
		h.sendLayers(sse, sess.Layers)
	}), nil
}

func (h *ViewerHandler) layerView(session string) layerView {
	if sess, ok := h.sessions.Get(session); ok {
		return sess.Layers
	}
	return h.layers
}

func (h *ViewerHandler) sendLayers(sse humastar.SSE, view layerView) {
	sse.Patch(h.renderLayers(view), "#layer-switcher")
	if err := sse.DispatchCustomEvent("layers-changed", map[string]any{"visible": visibility(view)}); err != nil {
		log.Debug().Err(err).Msg("layers-changed dispatch failed")
	}
}

func visibility(view layerView) map[string]bool {
	vis := make(map[string]bool)
	for _, l := range view.List() {
		vis[l.ID] = l.Visible
	}
	return vis
}

// renderLayers renders one fold per group. Groups holding base layers get a
// select, since exactly one base shows at a time.
func (h *ViewerHandler) renderLayers(view layerView) string {
	var b strings.Builder
	for _, g := range h.layers.Groups() {
		group := layerGroupView{
			ID:           g.ID,
			Title:        g.Title,
			Open:         g.Fold == "open",
			TogglePrefix: TogglePrefix,
		}
		var options []humastar.SelectOptionData
		for _, id := range g.Layers {
			l, ok := view.Get(id)
			if !ok {
				continue
			}
			group.Layers = append(group.Layers, l)
			group.Base = group.Base || l.Base
			options = append(options, humastar.SelectOptionData{Value: l.ID, Label: l.Title, Selected: l.Visible})
		}
		if group.Base {
			group.Options = template.HTML(h.RenderSelect(options))
		}
		b.WriteString(h.RenderList("layer-group", []any{group}, g.Title, ""))
	}
	return b.String()
}
