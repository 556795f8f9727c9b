package service

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/route"
)

// SourceService reads the geometry source file.
type SourceService struct {
	path string
}

// NewSourceService creates a source service for a GeoJSON file.
func NewSourceService(path string) *SourceService {
	return &SourceService{path: path}
}

// Load reads the routes once. A missing or malformed file is logged and
// yields an empty collection so the viewer still starts.
func (s *SourceService) Load() (*route.Collection, SourceInfo) {
	info := SourceInfo{Path: s.path}

	if st, err := os.Stat(s.path); err == nil {
		info.Size = formatSize(st.Size())
	}

	routes, err := route.Load(s.path)
	if err != nil {
		info.Error = err.Error()
		log.Warn().Err(err).Str("path", s.path).Msg("Geometry source unavailable, starting with an empty map")
		return route.Empty(), info
	}

	info.Loaded = true
	info.Features = routes.Len()
	log.Info().
		Str("path", s.path).
		Str("size", info.Size).
		Int("routes", info.Features).
		Msg("Geometry source loaded")
	return routes, info
}

// Path returns the source file path.
func (s *SourceService) Path() string {
	return s.path
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
