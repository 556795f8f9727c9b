package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-camino/internal/config"
	"github.com/joeblew999/plat-camino/internal/humastar"
	"github.com/joeblew999/plat-camino/internal/mapview"
	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/service"
	"github.com/joeblew999/plat-camino/internal/style"
	"github.com/joeblew999/plat-camino/internal/templates"
	"github.com/joeblew999/plat-camino/web"
)

type fixture struct {
	api      humatest.TestAPI
	raw      huma.API
	bus      *service.EventBus
	layers   *service.LayerService
	sessions *service.SessionService
}

func testRoutes() *route.Collection {
	fc := geojson.NewFeatureCollection()
	add := func(name, group string, km float64, ls orb.LineString) {
		f := geojson.NewFeature(ls)
		f.Properties[route.PropName] = name
		f.Properties[route.PropGroup] = group
		f.Properties[route.PropLength] = km
		f.Properties[route.PropInfoURL] = "https://example.org/" + name
		fc.Append(f)
	}
	add("Camino Francés", "Camino Francés", 764, orb.LineString{{-6, 42}, {-2, 42}})
	add("Camino del Norte", "Caminos del Norte", 817, orb.LineString{{-4, 43.5}, {-3, 43.5}})
	add("Camino Primitivo", "Caminos del Norte", 321, orb.LineString{{-8, 43}, {-7, 43}})
	add("Camino Interior", "Caminos Interiores", 50, orb.LineString{{0, 40}, {1, 40}})
	return route.FromFeatureCollection(fc)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	renderer, err := templates.New(web.FS)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	bus := service.NewEventBus()
	layers := service.NewLayerService(config.Default(), bus)
	resolver := style.NewResolver()
	routes := service.NewRouteService(testRoutes(), resolver)
	scene := mapview.NewScene(2)
	scene.AddLayer("camino_santiago", routes.Collection(), resolver)
	sessions := service.NewSessionService(scene, layers, bus, time.Minute)

	api := humago.New(http.NewServeMux(), huma.DefaultConfig("camino test", "0.1.0"))
	NewViewerHandler(renderer, sessions, layers, routes, bus).RegisterRoutes(api)

	return &fixture{api: humatest.Wrap(t, api), raw: api, bus: bus, layers: layers, sessions: sessions}
}

// view centers the map on lon/lat (-4, 42) at 100 m/px in an 800x600
// canvas, so the Francés line runs along y=300.
func view(session string, x, y float64) map[string]any {
	c := mapview.FromLonLat(orb.Point{-4, 42})
	return map[string]any{
		"session": session,
		"px":      x, "py": y,
		"centerx": c[0], "centery": c[1],
		"res":   100,
		"width": 800, "height": 600,
	}
}

func TestStartSession(t *testing.T) {
	f := newFixture(t)
	resp := f.api.Post(Prefix+"/session", map[string]any{"session": ""})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body)
	}
	if f.sessions.Len() != 1 {
		t.Fatalf("sessions=%d, want 1", f.sessions.Len())
	}
	body := resp.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") || !strings.Contains(body, `"popupvisible":false`) {
		t.Errorf("unexpected body: %s", body)
	}

	sess := f.sessions.Create()
	f.api.Post(Prefix+"/session", map[string]any{"session": sess.ID})
	if f.sessions.Len() != 2 {
		t.Errorf("a live session should be reused, sessions=%d", f.sessions.Len())
	}
}

func TestClickShowsPopup(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Create()

	resp := f.api.Post(Prefix+"/click", view(sess.ID, 450, 300))
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", resp.Code, resp.Body)
	}
	body := resp.Body.String()
	for _, want := range []string{"#popup-content", "Camino Francés", "764 km", `"popupvisible":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}

	snap, _ := f.sessions.Snapshot(sess.ID)
	if !snap.Popup.Visible || snap.Popup.Anchor == nil {
		t.Fatalf("popup=%+v", snap.Popup)
	}
	want := mapview.Viewport{Center: mapview.FromLonLat(orb.Point{-4, 42}), Resolution: 100, Width: 800, Height: 600}.CoordinateAt(450, 300)
	if *snap.Popup.Anchor != want {
		t.Errorf("anchor=%v, want %v", *snap.Popup.Anchor, want)
	}
}

func TestClickMissHidesPopup(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Create()

	f.api.Post(Prefix+"/click", view(sess.ID, 450, 300))
	resp := f.api.Post(Prefix+"/click", view(sess.ID, 10, 10))
	body := resp.Body.String()
	if !strings.Contains(body, `"popupvisible":false`) || strings.Contains(body, "#popup-content") {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDismissBlursCloser(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Create()
	f.api.Post(Prefix+"/click", view(sess.ID, 450, 300))

	resp := f.api.Post(Prefix+"/dismiss", map[string]any{"session": sess.ID})
	body := resp.Body.String()
	if !strings.Contains(body, `"popupvisible":false`) || !strings.Contains(body, "popup-closer") {
		t.Errorf("unexpected body: %s", body)
	}
	snap, _ := f.sessions.Snapshot(sess.ID)
	if snap.Popup.Visible {
		t.Error("popup still visible")
	}
}

func TestHoverCursor(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Create()

	tests := []struct {
		name     string
		x, y     float64
		dragging bool
		want     string
	}{
		{"over route", 450, 300, false, `"cursor":"pointer"`},
		{"empty map", 10, 10, false, `"cursor":""`},
		{"dragging over route", 450, 300, true, `"cursor":""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := view(sess.ID, tt.x, tt.y)
			signals["dragging"] = tt.dragging
			body := f.api.Post(Prefix+"/hover", signals).Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %s: %s", tt.want, body)
			}
			if strings.Contains(body, "popupvisible") {
				t.Errorf("hover should not touch the popup: %s", body)
			}
		})
	}
}

func TestExpiredSessionIsReplaced(t *testing.T) {
	f := newFixture(t)
	body := f.api.Post(Prefix+"/click", view("gone", 450, 300)).Body.String()
	if strings.Contains(body, `"session":"gone"`) || !strings.Contains(body, `"popupvisible":true`) {
		t.Errorf("unexpected body: %s", body)
	}
	if f.sessions.Len() != 1 {
		t.Errorf("sessions=%d", f.sessions.Len())
	}
}

func TestInvalidSignals(t *testing.T) {
	f := newFixture(t)
	resp := f.api.Post(Prefix+"/click", strings.NewReader("{nope"))
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", resp.Code)
	}
}

// signalsQuery encodes signals the way Datastar sends them with a GET.
func signalsQuery(signals map[string]any) string {
	b, _ := json.Marshal(signals)
	return "?datastar=" + url.QueryEscape(string(b))
}

func TestLayersPanel(t *testing.T) {
	f := newFixture(t)
	body := f.api.Get(Prefix + "/layers").Body.String()
	for _, want := range []string{"#layer-switcher", "base-layer", "Mapas Base", "layer-camino_santiago", TogglePrefix + "camino_santiago/toggle", `value="osm" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	sess := f.sessions.Create()
	if _, err := sess.Layers.SetVisible("pnoa", true); err != nil {
		t.Fatal(err)
	}
	body = f.api.Get(Prefix + "/layers" + signalsQuery(map[string]any{"session": sess.ID})).Body.String()
	if !strings.Contains(body, `value="pnoa" selected`) || strings.Contains(body, `value="osm" selected`) {
		t.Errorf("session switcher should show pnoa: %s", body)
	}

	if resp := f.api.Get(Prefix + "/layers?datastar=%7B"); resp.Code != http.StatusBadRequest {
		t.Errorf("invalid signals status=%d, want 400", resp.Code)
	}
}

func TestToggleLayer(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Create()
	toggle := func(id string) string {
		return f.api.Post(Prefix+"/layers/"+id+"/toggle", map[string]any{"session": sess.ID}).Body.String()
	}

	body := toggle("pnoa")
	if !sess.Layers.Visible("pnoa") || sess.Layers.Visible("osm") {
		t.Error("showing pnoa should hide osm")
	}
	if !strings.Contains(body, "layers-changed") || !strings.Contains(body, sess.ID) {
		t.Errorf("missing layers-changed or session: %s", body)
	}

	toggle("pnoa")
	if !sess.Layers.Visible("pnoa") {
		t.Error("toggling the visible base should be a no-op")
	}

	toggle("camino_santiago")
	if sess.Layers.Visible("camino_santiago") {
		t.Error("route layer still visible")
	}
	if !f.layers.Visible("camino_santiago") || f.layers.Visible("pnoa") {
		t.Error("toggling changed the configured defaults")
	}

	if resp := f.api.Post(Prefix+"/layers/nope/toggle", map[string]any{"session": sess.ID}); resp.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", resp.Code)
	}
}

func TestToggleLayerPerSession(t *testing.T) {
	f := newFixture(t)
	a, b := f.sessions.Create(), f.sessions.Create()

	f.api.Post(Prefix+"/layers/camino_santiago/toggle", map[string]any{"session": a.ID})
	if a.Layers.Visible("camino_santiago") {
		t.Error("session a still shows the route layer")
	}
	if !b.Layers.Visible("camino_santiago") {
		t.Error("session b lost the route layer")
	}

	f.api.Post(Prefix+"/layers/camino_santiago/toggle", map[string]any{"session": b.ID})
	f.api.Post(Prefix+"/layers/camino_santiago/toggle", map[string]any{"session": a.ID})
	if !a.Layers.Visible("camino_santiago") || b.Layers.Visible("camino_santiago") {
		t.Error("sessions should toggle independently")
	}
}

func TestHiddenRouteLayerIsNotPicked(t *testing.T) {
	f := newFixture(t)
	hidden, shown := f.sessions.Create(), f.sessions.Create()
	if _, err := hidden.Layers.SetVisible("camino_santiago", false); err != nil {
		t.Fatal(err)
	}
	body := f.api.Post(Prefix+"/click", view(hidden.ID, 450, 300)).Body.String()
	if !strings.Contains(body, `"popupvisible":false`) {
		t.Errorf("hidden layer was picked: %s", body)
	}
	body = f.api.Post(Prefix+"/click", view(shown.ID, 450, 300)).Body.String()
	if !strings.Contains(body, `"popupvisible":true`) {
		t.Errorf("other session should still pick: %s", body)
	}
}

func TestLegend(t *testing.T) {
	f := newFixture(t)
	body := f.api.Get(Prefix + "/legend").Body.String()
	for _, want := range []string{"#legend", "Caminos del Norte", "1138 km", "Caminos Andaluces", "Otros caminos", "50 km"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestLegendTotals(t *testing.T) {
	totals := LegendTotals([]service.GroupSummary{
		{Group: "Caminos del Norte", Routes: 2, TotalKm: 1138},
		{Group: "Caminos Interiores", Routes: 1, TotalKm: 50},
		{Group: "Desconocido", Routes: 2, TotalKm: 10},
	})
	if len(totals) != 2 {
		t.Fatalf("totals=%+v", totals)
	}
	if o := totals[""]; o.Routes != 3 || o.TotalKm != 60 || o.Color != style.FallbackColor {
		t.Errorf("fallback=%+v", o)
	}
	if n := totals["Caminos del Norte"]; n.Color != "red" {
		t.Errorf("norte=%+v", n)
	}
}

func TestEventsStreamLayerChanges(t *testing.T) {
	f := newFixture(t)
	mine, other := f.sessions.Create(), f.sessions.Create()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for f.bus.Subscribers() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		other.Layers.Toggle("pnoa")
		mine.Layers.Toggle("camino_santiago")
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	body := f.api.GetCtx(ctx, Prefix+"/events"+signalsQuery(map[string]any{"session": mine.ID})).Body.String()
	for _, want := range []string{"resource-changed", "layers-changed", "#layer-switcher", "camino_santiago"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
	if strings.Contains(body, `"id":"pnoa"`) || strings.Contains(body, `"pnoa":true`) {
		t.Errorf("another session's change leaked: %s", body)
	}
	if f.bus.Subscribers() != 0 {
		t.Error("stream did not unsubscribe")
	}
}

func TestPageDataDiscovery(t *testing.T) {
	f := newFixture(t)
	page := humastar.BuildPageData(f.raw, Tag, ViewerSignals{})

	for id, path := range map[string]string{
		"ui-session": Prefix + "/session",
		"ui-click":   Prefix + "/click",
		"ui-hover":   Prefix + "/hover",
		"ui-dismiss": Prefix + "/dismiss",
		"ui-layers":  Prefix + "/layers",
		"ui-legend":  Prefix + "/legend",
		"ui-events":  Prefix + "/events",
	} {
		if got := page.Route(id); got != path {
			t.Errorf("Route(%q)=%q, want %q", id, got, path)
		}
	}

	var signals map[string]any
	if err := json.Unmarshal([]byte(page.Signals), &signals); err != nil {
		t.Fatal(err)
	}
	if signals["panelopen"] != true || signals["session"] != "" || signals["popupvisible"] != false {
		t.Errorf("signals=%v", signals)
	}
}
