package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/api"
)

const testSource = "../../data/caminos_santiago.geojson"

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Source == "" {
		cfg.Source = testSource
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestViewerPage(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := get(s, "/viewer")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type=%q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Caminos de Santiago", "CAMINO_MAP", "geojsonUrl", "popup-closer", "camino-click", "panelopen"} {
		if !strings.Contains(body, want) {
			t.Errorf("viewer page missing %q", want)
		}
	}
	if strings.Contains(body, "{{") {
		t.Error("unrendered template action in page")
	}
}

func TestStyledGeoJSON(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := get(s, api.GeoJSONPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 9 {
		t.Fatalf("features=%d, want 9", len(fc.Features))
	}

	colors := map[string]string{}
	for _, f := range fc.Features {
		st, _ := f.Properties["style"].(map[string]any)
		stroke, _ := st["stroke"].(map[string]any)
		colors[f.Properties.MustString("nombre", "")], _ = stroke["color"].(string)
	}
	tests := map[string]string{
		"Camino Francés":   "gold",
		"Camino Primitivo": "red",
		"Camino Portugués": "teal",
		"Camino Sanabrés":  "gray",
	}
	for name, want := range tests {
		if colors[name] != want {
			t.Errorf("%s drawn in %q, want %q", name, colors[name], want)
		}
	}
}

func TestMissingSourceDegrades(t *testing.T) {
	s := newTestServer(t, Config{Source: filepath.Join(t.TempDir(), "missing.geojson")})

	if rec := get(s, "/viewer"); rec.Code != http.StatusOK {
		t.Fatalf("viewer status=%d", rec.Code)
	}

	var info api.InfoBody
	if err := json.Unmarshal(get(s, "/api/v1/info").Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Source.Loaded || info.Source.Error == "" || info.Routes != 0 {
		t.Errorf("info=%+v", info)
	}

	fc, err := geojson.UnmarshalFeatureCollection(get(s, api.GeoJSONPath).Body.Bytes())
	if err != nil || len(fc.Features) != 0 {
		t.Errorf("empty source should serve an empty collection: %v, %v", fc, err)
	}
}

func TestInvalidMapConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	if err := os.WriteFile(path, []byte("view:\n  extent: [10, 10, 0, 0]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{Source: testSource, MapConfig: path}); err == nil {
		t.Fatal("expected an error for an inverted extent")
	}
}

func TestAssets(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		path   string
		status int
		ctype  string
	}{
		{"/favicon.svg", http.StatusOK, "image/svg+xml"},
		{"/static/viewer.js", http.StatusOK, "javascript"},
		{"/static/viewer.css", http.StatusOK, "text/css"},
		{"/", http.StatusOK, "application/json"},
		{"/nope", http.StatusNotFound, ""},
		{"/health", http.StatusOK, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(s, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status=%d, want %d", rec.Code, tt.status)
			}
			if tt.ctype != "" && !strings.Contains(rec.Header().Get("Content-Type"), tt.ctype) {
				t.Errorf("content-type=%q, want %q", rec.Header().Get("Content-Type"), tt.ctype)
			}
		})
	}
}

func TestWebDirOverride(t *testing.T) {
	s := newTestServer(t, Config{WebDir: "../../web"})
	if rec := get(s, "/viewer"); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRouteTile(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := get(s, "/api/v1/tiles/0/0/0")
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("status=%d, %d bytes", rec.Code, rec.Body.Len())
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("content-encoding=%q", rec.Header().Get("Content-Encoding"))
	}
}

func TestOpenAPI(t *testing.T) {
	s := newTestServer(t, Config{})
	paths := s.OpenAPI().Paths
	for _, p := range []string{"/health", "/api/v1/map", "/api/v1/sessions/{session}/layers/{id}/visibility", "/api/v1/routes", "/api/v1/ui/click", "/api/v1/ui/events", "/api/v1/tiles/{z}/{x}/{y}"} {
		if paths[p] == nil {
			t.Errorf("OpenAPI missing %s", p)
		}
	}
}

func TestDBLoaded(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := get(s, "/api/v1/groups")
	var groups []struct {
		Group  string `json:"group"`
		Routes int    `json:"routes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 8 {
		t.Errorf("groups=%+v", groups)
	}
}

func TestLayerVisibilityPerSession(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, Config{DataDir: dir})
	a, b := s.sessions.Create(), s.sessions.Create()

	put := func(session, layer string, visible bool) int {
		body := fmt.Sprintf(`{"visible":%t}`, visible)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+session+"/layers/"+layer+"/visibility", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec.Code
	}
	visible := func(path string) bool {
		var layer struct {
			Visible bool `json:"visible"`
		}
		json.Unmarshal(get(s, path).Body.Bytes(), &layer)
		return layer.Visible
	}

	if code := put(a.ID, "pnoa", true); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if code := put(b.ID, "camino_santiago", false); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}

	if !visible("/api/v1/sessions/"+a.ID+"/layers/pnoa") || !visible("/api/v1/sessions/"+a.ID+"/layers/camino_santiago") {
		t.Error("session a lost its own state or took b's")
	}
	if visible("/api/v1/sessions/"+b.ID+"/layers/pnoa") || visible("/api/v1/sessions/"+b.ID+"/layers/camino_santiago") {
		t.Error("session b took a's state or lost its own")
	}
	if visible("/api/v1/layers/pnoa") || !visible("/api/v1/layers/camino_santiago") {
		t.Error("configured defaults changed")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			t.Errorf("visibility written to %s", e.Name())
		}
	}
}

func TestRoutesLoadLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	newTestServer(t, Config{})
	if n := strings.Count(buf.String(), "Routes loaded into DuckDB"); n != 1 {
		t.Errorf("routes load logged %d times, want once", n)
	}
}

func TestRequestLoggerKeepsFlusher(t *testing.T) {
	var flushed bool
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushed = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !flushed {
		t.Error("wrapped writer is not an http.Flusher")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status=%d", rec.Code)
	}
}
