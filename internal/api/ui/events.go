package ui

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/service"
)

// Events streams the page's session events and global events until the
// client goes away. Layer changes made through the REST API for the
// session re-render the switcher and the map.
func (h *ViewerHandler) Events(ctx context.Context, input *humastar.SignalsQuery) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	session := signals.String("session")

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if ev.Session != "" && ev.Session != session {
						continue
					}
					if ev.Resource == service.ResourceLayers {
						h.sendLayers(sse, h.layerView(session))
					}
					if err := sse.DispatchCustomEvent("resource-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					}); err != nil {
						log.Debug().Err(err).Msg("Event stream closed")
						return
					}
				}
			}
		},
	}, nil
}
