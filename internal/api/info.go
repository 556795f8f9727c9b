package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-camino/internal/service"
)

// RegisterInfo registers the service description.
func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string             `json:"name" doc:"Service name"`
	Version  string             `json:"version" doc:"Service version"`
	Source   service.SourceInfo `json:"source" doc:"Route geometry source"`
	Routes   int                `json:"routes" doc:"Routes loaded"`
	Sessions int                `json:"sessions" doc:"Live viewer sessions"`
	DB       bool               `json:"db" doc:"Whether database is available"`
	Features []string           `json:"features" doc:"Available features"`
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"styles", "picking", "popup", "cursor", "layers"}
	if h.svc.Tiles != nil {
		features = append(features, "tiles")
	}
	if h.svc.DB != nil {
		features = append(features, "duckdb")
	}
	sessions := 0
	if h.svc.Sessions != nil {
		sessions = h.svc.Sessions.Len()
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "camino",
		Version:  Version,
		Source:   h.svc.Source,
		Routes:   h.svc.Routes.Len(),
		Sessions: sessions,
		DB:       h.svc.DB != nil,
		Features: features,
	}}, nil
}
