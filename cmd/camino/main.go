package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-camino/internal/logger"
	"github.com/joeblew999/plat-camino/internal/server"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/tiler"
)

// Options defines all CLI flags and env vars for the camino server.
// Flags: --host, --port, --source, --web-dir, --data-dir, --map-config, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_SOURCE, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	Source       string `doc:"Route GeoJSON file" default:"data/caminos_santiago.geojson"`
	WebDir       string `doc:"Serve web assets from this directory instead of the embedded ones"`
	DataDir      string `doc:"Directory for the DuckDB file; empty keeps it in memory" default:".data"`
	MapConfig    string `doc:"YAML map configuration; empty uses the built-in one"`
	SessionTTL   string `doc:"Idle viewer session lifetime" default:"30m"`
	HitTolerance int    `doc:"Extra pick radius in pixels" default:"2"`
	LogLevel     string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogPretty    bool   `doc:"Human-readable console logs"`
}

func newServer(opts *Options) (*server.Server, error) {
	logger.Setup(logger.Options{Level: opts.LogLevel, Pretty: opts.LogPretty})
	ttl, err := time.ParseDuration(opts.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("session-ttl: %w", err)
	}
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		Source:       opts.Source,
		WebDir:       opts.WebDir,
		DataDir:      opts.DataDir,
		MapConfig:    opts.MapConfig,
		SessionTTL:   ttl,
		HitTolerance: float64(opts.HitTolerance),
	})
}

func mustServer(opts *Options) *server.Server {
	srv, err := newServer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			httpServer *http.Server
			cancel     context.CancelFunc
			srv        *server.Server
		)

		hooks.OnStart(func() {
			srv = mustServer(opts)
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("camino viewer starting...\n")
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Source:  %s\n", opts.Source)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go srv.Run(ctx)

			httpServer = &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Server error")
			}
		})

		hooks.OnStop(func() {
			if cancel != nil {
				cancel()
			}
			if httpServer != nil {
				ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := httpServer.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Shutdown incomplete")
				}
			}
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "camino"
	cli.Root().Short = "Interactive map of the Caminos de Santiago"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := mustServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// routes subcommand: print the loaded catalog with resolved colors
	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes in the source with their group and color",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger.Setup(logger.Options{Level: "warn"})
			routes, info := service.NewSourceService(opts.Source).Load()
			if !info.Loaded {
				fmt.Fprintf(os.Stderr, "Error: %s\n", info.Error)
				os.Exit(1)
			}
			printRoutes(service.NewRouteService(routes, nil))
		}),
	}
	cli.Root().AddCommand(routesCmd)

	// tiles subcommand: export the routes as a PMTiles archive
	tilesCmd := &cobra.Command{
		Use:   "tiles",
		Short: "Export the routes as a PMTiles vector tile archive",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger.Setup(logger.Options{Level: opts.LogLevel, Pretty: opts.LogPretty})
			out, _ := cmd.Flags().GetString("output")
			minZoom, _ := cmd.Flags().GetInt("min-zoom")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")
			if err := exportTiles(opts.Source, out, minZoom, maxZoom); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	tilesCmd.Flags().StringP("output", "o", "caminos.pmtiles", "Archive to write")
	tilesCmd.Flags().Int("min-zoom", 0, "Lowest zoom level")
	tilesCmd.Flags().Int("max-zoom", 10, "Highest zoom level")
	cli.Root().AddCommand(tilesCmd)

	cli.Run()
}

func exportTiles(source, out string, minZoom, maxZoom int) error {
	if minZoom < 0 || maxZoom < 0 {
		return errors.New("zoom levels must not be negative")
	}
	routes, info := service.NewSourceService(source).Load()
	if !info.Loaded {
		return errors.New(info.Error)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	stats, err := tiler.New(routes, nil).Export(f, maptile.Zoom(minZoom), maptile.Zoom(maxZoom))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}
	log.Info().Str("file", out).Int("tiles", stats.Tiles).Uint64("bytes", stats.Bytes).Msg("Tiles exported")
	return nil
}

func printRoutes(catalog *service.RouteService) {
	routes, total := catalog.List(0, 0)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGROUP\tKM\tCOLOR")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\n", r.ID, r.Name, r.Group, r.LengthKm, r.Color)
	}
	tw.Flush()
	fmt.Printf("\n%d routes\n", total)
}
