package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/db"
	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/service"
)

type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

// RegisterCaminos registers the route catalog.
func (h *APIHandler) RegisterCaminos(api huma.API) {
	huma.Get(api, "/api/v1/routes", h.ListRoutes, huma.OperationTags("routes"))
	huma.Get(api, "/api/v1/routes/{id}", h.GetRoute, huma.OperationTags("routes"))
	huma.Get(api, "/api/v1/groups", h.ListGroups, huma.OperationTags("routes"))
}

func (h *APIHandler) ListRoutes(ctx context.Context, input *PageInput) (*struct {
	Body humastar.PageBody[service.RouteSummary]
}, error) {
	page, total := h.svc.Routes.List(input.Offset, input.Limit)
	return &struct {
		Body humastar.PageBody[service.RouteSummary]
	}{Body: humastar.NewPage(page, total, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetRoute(ctx context.Context, input *IDInput) (*struct{ Body service.RouteSummary }, error) {
	r, ok := h.svc.Routes.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("route %q not found", input.ID))
	}
	return &struct{ Body service.RouteSummary }{Body: r}, nil
}

// ListGroups totals routes per family, from DuckDB when it is available.
func (h *APIHandler) ListGroups(ctx context.Context, input *struct{}) (*struct{ Body []service.GroupSummary }, error) {
	if h.svc.DB != nil {
		totals, err := db.GroupTotals(ctx, h.svc.DB)
		if err == nil {
			out := make([]service.GroupSummary, len(totals))
			for i, t := range totals {
				out[i] = service.GroupSummary{Group: t.Group, Color: t.Color, Routes: t.Routes, TotalKm: t.TotalKm}
			}
			return &struct{ Body []service.GroupSummary }{Body: out}, nil
		}
		log.Warn().Err(err).Msg("Group totals query failed, using in-memory catalog")
	}
	return &struct{ Body []service.GroupSummary }{Body: h.svc.Routes.Groups()}, nil
}
