// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// Handlers return a [huma.StreamResponse] built by [Handler.Stream]; the
// callback receives an [SSE] that patches fragments and signals into the
// page. Request signals arrive as a flat JSON body read through
// [SignalsInput] and accessed with the typed getters on [Signals].
//
//	type LegendHandler struct {
//	    humastar.Handler
//	}
//
//	func (h *LegendHandler) Legend(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.RenderList("legend-item", items, "Sin leyenda", ""), "#legend")
//	    }), nil
//	}
package humastar

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-camino/internal/templates"
)

// Handler is embedded by Huma handlers that answer with Datastar SSE.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a Huma streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// RenderList renders items with a named template, or an empty state if none.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	return RenderList(h.Renderer, tmpl, items, emptyTitle, emptyMsg)
}

// RenderSelect renders the option elements of a select.
func (h *Handler) RenderSelect(options []SelectOptionData) string {
	return RenderSelect(h.Renderer, options)
}

// SSE is a Datastar event generator bound to one Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context. The
// API must be served by the humago adapter.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of the elements matching selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Error sets the error signal.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Signals patches arbitrary signals.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Blur removes focus from the element with the given id.
func (s SSE) Blur(id string) {
	s.ExecuteScript(fmt.Sprintf("document.getElementById(%q)?.blur()", id))
}

// EmptyInput is a shared input struct for handlers with no parameters.
type EmptyInput struct{}
