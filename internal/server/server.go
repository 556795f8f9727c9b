// Package server wires the camino viewer: the Huma API, the Datastar UI
// handlers, the viewer page and the styled route geometry.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/api"
	"github.com/joeblew999/plat-camino/internal/api/ui"
	"github.com/joeblew999/plat-camino/internal/config"
	"github.com/joeblew999/plat-camino/internal/db"
	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/mapview"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/style"
	"github.com/joeblew999/plat-camino/internal/templates"
	"github.com/joeblew999/plat-camino/internal/tiler"
	"github.com/joeblew999/plat-camino/web"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	// Source is the route GeoJSON file.
	Source string
	// WebDir overrides the embedded web assets and is re-read on every
	// page load.
	WebDir string
	// DataDir holds the DuckDB file. Empty keeps it in memory.
	DataDir string
	// MapConfig is a YAML map description. Empty uses the built-in one.
	MapConfig    string
	SessionTTL   time.Duration
	HitTolerance float64
}

// Server is the camino HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.LinkSet
	db       *sql.DB
	bus      *service.EventBus
	sessions *service.SessionService
	services *api.Services
	renderer *templates.Renderer
	webFS    fs.FS
	page     *pageBuilder

	geojsonOnce sync.Once
	geojson     []byte
	geojsonErr  error
}

// New builds a server. Only an invalid map configuration or unreadable web
// assets are fatal; a missing route source or database degrades to an
// empty map.
func New(cfg Config) (*Server, error) {
	mapCfg, err := config.Load(cfg.MapConfig)
	if err != nil {
		return nil, err
	}
	if cfg.HitTolerance <= 0 {
		cfg.HitTolerance = mapview.DefaultHitTolerance
	}

	webFS := fs.FS(web.FS)
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	renderer, err := templates.New(webFS)
	if err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	bus := service.NewEventBus()
	layers := service.NewLayerService(mapCfg, bus)

	coll, info := service.NewSourceService(cfg.Source).Load()
	resolver := style.NewResolver()
	routes := service.NewRouteService(coll, resolver)

	scene := mapview.NewScene(cfg.HitTolerance)
	scene.AddLayer(mapCfg.VectorLayerID(), coll, resolver)
	sessions := service.NewSessionService(scene, layers, bus, cfg.SessionTTL)

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		links:    humastar.NewLinkSet(),
		bus:      bus,
		sessions: sessions,
		renderer: renderer,
		webFS:    webFS,
	}
	s.db = openDB(cfg.DataDir, routes)

	s.services = &api.Services{
		Config:   mapCfg,
		Layers:   layers,
		Routes:   routes,
		Sessions: sessions,
		Source:   info,
		DB:       s.db,
		Tiles:    tiler.New(coll, resolver),
	}

	humaConfig := huma.DefaultConfig("Caminos de Santiago API", api.Version)
	humaConfig.Info.Description = "Interactive map of the pilgrimage routes to Santiago: route catalog, layer tree and viewer interaction."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.page = newPageBuilder(webFS, cfg.WebDir != "", humastar.BuildPageData(s.humaAPI, ui.Tag, ui.ViewerSignals{}))
	s.handler = RequestLogger(s.mux)
	return s, nil
}

// openDB loads the routes into DuckDB. Failure is logged: only the
// analytics endpoints depend on it.
func openDB(dataDir string, routes *service.RouteService) *sql.DB {
	conn, err := db.Open(db.Config{DataDir: dataDir, DBName: "camino"})
	if err != nil {
		log.Warn().Err(err).Msg("DuckDB unavailable, analytics disabled")
		return nil
	}
	if err := db.LoadRoutes(context.Background(), conn, routes.Collection(), routes.Resolver()); err != nil {
		log.Warn().Err(err).Msg("Loading routes into DuckDB failed, analytics disabled")
		conn.Close()
		return nil
	}
	if err := db.Lock(context.Background(), conn); err != nil {
		log.Warn().Err(err).Msg("Locking DuckDB failed, analytics disabled")
		conn.Close()
		return nil
	}
	return conn
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run sweeps idle viewer sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.sessions.Run(ctx)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Routes returns the route catalog.
func (s *Server) Routes() *service.RouteService {
	return s.services.Routes
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.NewAPIHandler(s.services).RegisterRoutes(s.humaAPI)
	ui.NewViewerHandler(s.renderer, s.sessions, s.services.Layers, s.services.Routes, s.bus).RegisterRoutes(s.humaAPI)
	s.links.Build(s.humaAPI, ui.Tag)

	static, err := fs.Sub(s.webFS, "static")
	if err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}
	s.mux.HandleFunc("/favicon.svg", s.handleFavicon)
	s.mux.HandleFunc(api.GeoJSONPath, s.handleGeoJSON)
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}
