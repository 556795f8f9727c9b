// Package api defines the Huma REST routes of the camino viewer.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-camino/internal/config"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/tiler"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Config   *config.Config
	Layers   *service.LayerService
	Routes   *service.RouteService
	Sessions *service.SessionService
	Source   service.SourceInfo
	DB       *sql.DB
	Tiles    *tiler.Tiler
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type IDInput struct {
	ID string `path:"id" doc:"Resource ID" example:"pnoa"`
}

// APIHandler holds all REST API handlers. Methods named Register* add one
// resource each.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST resource.
func (h *APIHandler) RegisterRoutes(api huma.API) {
	h.RegisterHealth(api)
	h.RegisterMap(api)
	h.RegisterLayers(api)
	h.RegisterCaminos(api)
	h.RegisterTiles(api)
	h.RegisterDB(api)
	h.RegisterInfo(api)
}

// RegisterHealth registers the entry point.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}
