package ui

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/style"
)

// Legend renders the palette. Entries with loaded routes show their count
// and length; groups outside the palette add up under the fallback entry.
func (h *ViewerHandler) Legend(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderLegend(), "#legend")
	}), nil
}

func (h *ViewerHandler) renderLegend() string {
	totals := LegendTotals(h.routes.Groups())
	var b strings.Builder
	for _, item := range style.Legend() {
		if t, ok := totals[item.Group]; ok {
			b.WriteString(h.RenderList("group-total", []any{t}, "", ""))
			continue
		}
		b.WriteString(h.RenderList("legend-item", []any{item}, "", ""))
	}
	return b.String()
}

// LegendTotals keys group totals by legend entry, folding groups without a
// palette color into the fallback entry "".
func LegendTotals(groups []service.GroupSummary) map[string]service.GroupSummary {
	totals := make(map[string]service.GroupSummary, len(groups))
	for _, g := range groups {
		key := g.Group
		if !style.Known(key) {
			key = ""
		}
		t := totals[key]
		t.Group = key
		t.Color = style.Color(key)
		t.Routes += g.Routes
		t.TotalKm += g.TotalKm
		totals[key] = t
	}
	return totals
}
