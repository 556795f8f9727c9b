package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/api"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "camino",
		"status":  "running",
		"viewer":  "/viewer",
		"docs":    "/docs",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir != "" {
		if err := s.renderer.Reload(s.webFS); err != nil {
			log.Warn().Err(err).Msg("Reloading fragments failed, keeping previous set")
		}
	}
	page, err := s.page.Build(api.BuildMapInfo(s.services.Config, s.services.Layers))
	if err != nil {
		log.Error().Err(err).Msg("Rendering viewer page failed")
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	icon, err := s.page.Favicon()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(icon)
}

// handleGeoJSON serves the route source with each feature's resolved style
// attached, so the browser draws exactly what the server picks against.
func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	s.geojsonOnce.Do(func() {
		s.geojson, s.geojsonErr = s.services.Routes.StyledGeoJSON()
	})
	if s.geojsonErr != nil {
		log.Error().Err(s.geojsonErr).Msg("Encoding route GeoJSON failed")
		http.Error(w, "routes unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(s.geojson)
}
