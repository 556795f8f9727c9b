package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-camino/internal/config"
	"github.com/joeblew999/plat-camino/internal/mapview"
	"github.com/joeblew999/plat-camino/internal/route"
	"github.com/joeblew999/plat-camino/internal/style"
	"github.com/joeblew999/plat-camino/internal/viewer"
)

func testRoutes() *route.Collection {
	fc := geojson.NewFeatureCollection()

	frances := geojson.NewFeature(orb.LineString{{-6, 42}, {-2, 42}})
	frances.Properties[route.PropName] = "Camino Francés"
	frances.Properties[route.PropGroup] = "Camino Francés"
	frances.Properties[route.PropLength] = 764.0
	frances.Properties[route.PropCountry] = "España"
	frances.Properties[route.PropInfoURL] = "https://example.org/cf"
	fc.Append(frances)

	norte := geojson.NewFeature(orb.LineString{{-4, 40}, {-4, 44}})
	norte.Properties[route.PropName] = "Camino del Norte"
	norte.Properties[route.PropGroup] = "Caminos del Norte"
	norte.Properties[route.PropLength] = 817.0
	fc.Append(norte)

	primitivo := geojson.NewFeature(orb.LineString{{-8, 43}, {-7, 43}})
	primitivo.Properties[route.PropName] = "Camino Primitivo"
	primitivo.Properties[route.PropGroup] = "Caminos del Norte"
	primitivo.Properties[route.PropLength] = 321.0
	fc.Append(primitivo)

	return route.FromFeatureCollection(fc)
}

func TestLayerServiceTree(t *testing.T) {
	s := NewLayerService(config.Default(), nil)

	layers := s.List()
	if len(layers) != 4 {
		t.Fatalf("expected 4 layers, got %d", len(layers))
	}
	if layers[0].ID != "mtn50" || layers[3].ID != "camino_santiago" {
		t.Errorf("unexpected order: %v, %v", layers[0].ID, layers[3].ID)
	}
	if layers[3].GroupTitle != "Capas Temáticas" {
		t.Errorf("groupTitle=%q", layers[3].GroupTitle)
	}

	groups := s.Groups()
	if len(groups) != 2 || groups[0].Title != "Mapas Base" || groups[0].Fold != "open" {
		t.Fatalf("groups=%+v", groups)
	}
	if len(groups[0].Layers) != 3 {
		t.Errorf("base group layers=%v", groups[0].Layers)
	}

	if !s.Visible("osm") || s.Visible("pnoa") {
		t.Error("osm should be the visible base layer")
	}
	if !s.Visible("unknown") {
		t.Error("unknown layers should count as visible")
	}
}

func visibleBases(layers []LayerInfo) []string {
	var ids []string
	for _, l := range layers {
		if l.Base && l.Visible {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func TestLayerStateBaseRadio(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	st := NewLayerService(config.Default(), bus).NewState("s1")

	if _, err := st.SetVisible("pnoa", true); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	if got := visibleBases(st.List()); len(got) != 1 || got[0] != "pnoa" {
		t.Fatalf("visible bases=%v, want [pnoa]", got)
	}

	select {
	case ev := <-ch:
		if ev.Resource != ResourceLayers || ev.Action != ActionToggled || ev.ID != "pnoa" || ev.Session != "s1" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Error("expected a toggle event")
	}

	if _, err := st.SetVisible("pnoa", false); !errors.Is(err, ErrBaseRequired) {
		t.Errorf("hiding the visible base: err=%v, want ErrBaseRequired", err)
	}

	// Toggling the visible base keeps it on.
	l, err := st.Toggle("pnoa")
	if err != nil || !l.Visible {
		t.Errorf("Toggle(pnoa)=%+v, %v", l, err)
	}

	if _, err := st.SetVisible("nope", true); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("err=%v, want ErrLayerNotFound", err)
	}
	if !st.Visible("unknown") {
		t.Error("unknown layers should count as visible")
	}
}

func TestLayerStateToggleThematic(t *testing.T) {
	tree := NewLayerService(config.Default(), nil)
	st := tree.NewState("s1")

	l, err := st.Toggle("camino_santiago")
	if err != nil || l.Visible {
		t.Fatalf("Toggle=%+v, %v", l, err)
	}
	if st.Visible("camino_santiago") {
		t.Error("layer should be hidden")
	}
	if got := visibleBases(st.List()); len(got) != 1 {
		t.Errorf("base layers changed: %v", got)
	}
	if !tree.Visible("camino_santiago") {
		t.Error("toggling a session changed the configured tree")
	}
}

func TestLayerStatesAreIndependent(t *testing.T) {
	tree := NewLayerService(config.Default(), nil)
	a, b := tree.NewState("a"), tree.NewState("b")

	a.SetVisible("mtn50", true)
	a.SetVisible("camino_santiago", false)

	if got := visibleBases(b.List()); len(got) != 1 || got[0] != "osm" {
		t.Errorf("b bases=%v, want [osm]", got)
	}
	if !b.Visible("camino_santiago") {
		t.Error("b sees a's hidden route layer")
	}
	if l, _ := b.Get("mtn50"); l.Visible {
		t.Error("b sees a's base layer")
	}
}

func TestSourceServiceDegrades(t *testing.T) {
	s := NewSourceService(filepath.Join(t.TempDir(), "missing.geojson"))
	routes, info := s.Load()
	if routes == nil || routes.Len() != 0 {
		t.Fatalf("expected empty collection, got %v", routes)
	}
	if info.Loaded || info.Error == "" {
		t.Errorf("info=%+v", info)
	}
}

func TestSourceServiceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caminos.geojson")
	data := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nombre":"A","agrupacion":"Camino Francés"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	routes, info := NewSourceService(path).Load()
	if routes.Len() != 1 || !info.Loaded || info.Features != 1 {
		t.Fatalf("routes=%d info=%+v", routes.Len(), info)
	}
	if !strings.HasSuffix(info.Size, " B") {
		t.Errorf("size=%q", info.Size)
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		12:          "12 B",
		1536:        "1.5 KB",
		5 * 1 << 20: "5.0 MB",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d)=%q, want %q", in, got, want)
		}
	}
}

func TestRouteServiceList(t *testing.T) {
	s := NewRouteService(testRoutes(), nil)

	page, total := s.List(1, 1)
	if total != 3 || len(page) != 1 {
		t.Fatalf("page=%v total=%d", page, total)
	}
	if page[0].Name != "Camino del Norte" || page[0].Color != "red" {
		t.Errorf("page[0]=%+v", page[0])
	}

	all, _ := s.List(0, 0)
	if len(all) != 3 {
		t.Errorf("limit 0 should return everything, got %d", len(all))
	}
	if beyond, _ := s.List(10, 5); len(beyond) != 0 {
		t.Errorf("offset past end returned %v", beyond)
	}

	r, ok := s.Get(all[0].ID)
	if !ok || r.Color != "gold" || r.InfoURL != "https://example.org/cf" {
		t.Errorf("Get=%+v, %v", r, ok)
	}
}

func TestRouteServiceGroups(t *testing.T) {
	groups := NewRouteService(testRoutes(), nil).Groups()
	if len(groups) != 2 {
		t.Fatalf("groups=%+v", groups)
	}
	if groups[0].Group != "Camino Francés" || groups[0].Routes != 1 {
		t.Errorf("groups[0]=%+v", groups[0])
	}
	if groups[1].Routes != 2 || groups[1].TotalKm != 1138 || groups[1].Color != "red" {
		t.Errorf("groups[1]=%+v", groups[1])
	}
}

func TestRouteServiceStyledGeoJSON(t *testing.T) {
	data, err := NewRouteService(testRoutes(), nil).StyledGeoJSON()
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("features=%d", len(fc.Features))
	}
	st, ok := fc.Features[0].Properties[StyleProperty].(map[string]any)
	if !ok {
		t.Fatalf("style property missing: %v", fc.Features[0].Properties)
	}
	stroke := st["stroke"].(map[string]any)
	if stroke["color"] != "gold" || stroke["width"] != 3.0 {
		t.Errorf("stroke=%v", stroke)
	}
}

func newSessions(t *testing.T, bus *EventBus) (*SessionService, mapview.Viewport) {
	t.Helper()
	scene := mapview.NewScene(2)
	scene.AddLayer("camino_santiago", testRoutes(), style.NewResolver())
	v := mapview.Viewport{
		Center:     mapview.FromLonLat(orb.Point{-4, 42}),
		Resolution: 100,
		Width:      800,
		Height:     600,
	}
	return NewSessionService(scene, NewLayerService(config.Default(), bus), bus, time.Minute), v
}

func TestSessionClickAndDismiss(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s, v := newSessions(t, bus)
	sess := s.Create()
	<-ch // created

	snap, err := s.Handle(sess.ID, v, viewer.Event{Type: viewer.SingleClick, Pixel: viewer.Pixel{X: 450, Y: 300}})
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Popup.Visible || !strings.Contains(snap.Popup.HTML, "Camino Francés") {
		t.Fatalf("popup=%+v", snap.Popup)
	}
	if snap.Popup.Anchor == nil || *snap.Popup.Anchor != v.CoordinateAt(450, 300) {
		t.Errorf("anchor=%v", snap.Popup.Anchor)
	}
	if ev := <-ch; ev.Resource != ResourcePopup || ev.Action != ActionShown {
		t.Errorf("event=%+v", ev)
	}

	snap, err = s.Dismiss(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Popup.Visible || !snap.BlurCloser {
		t.Errorf("after dismiss: %+v", snap)
	}
	if ev := <-ch; ev.Action != ActionHidden {
		t.Errorf("event=%+v", ev)
	}

	// The blur request is consumed by the snapshot that reported it.
	snap, _ = s.Snapshot(sess.ID)
	if snap.BlurCloser {
		t.Error("blur reported twice")
	}
}

func TestSessionClickMissHides(t *testing.T) {
	s, v := newSessions(t, nil)
	sess := s.Create()

	s.Handle(sess.ID, v, viewer.Event{Type: viewer.SingleClick, Pixel: viewer.Pixel{X: 450, Y: 300}})
	snap, _ := s.Handle(sess.ID, v, viewer.Event{Type: viewer.SingleClick, Pixel: viewer.Pixel{X: 10, Y: 10}})
	if snap.Popup.Visible || snap.Popup.Anchor != nil || snap.Popup.HTML != "" {
		t.Errorf("popup after miss=%+v", snap.Popup)
	}
}

func TestSessionHover(t *testing.T) {
	s, v := newSessions(t, nil)
	sess := s.Create()

	snap, _ := s.Handle(sess.ID, v, viewer.Event{Type: viewer.PointerMove, Pixel: viewer.Pixel{X: 400, Y: 200}})
	if snap.Cursor != viewer.CursorPointer {
		t.Errorf("cursor=%q, want pointer", snap.Cursor)
	}

	snap, _ = s.Handle(sess.ID, v, viewer.Event{Type: viewer.PointerMove, Pixel: viewer.Pixel{X: 10, Y: 10}, Dragging: true})
	if snap.Cursor != viewer.CursorPointer {
		t.Errorf("dragging changed cursor to %q", snap.Cursor)
	}

	snap, _ = s.Handle(sess.ID, v, viewer.Event{Type: viewer.PointerMove, Pixel: viewer.Pixel{X: 10, Y: 10}})
	if snap.Cursor != viewer.CursorDefault {
		t.Errorf("cursor=%q, want default", snap.Cursor)
	}
}

func TestSessionHiddenLayerNotPicked(t *testing.T) {
	s, v := newSessions(t, nil)
	hider, other := s.Create(), s.Create()

	if _, err := hider.Layers.Toggle("camino_santiago"); err != nil {
		t.Fatal(err)
	}
	click := viewer.Event{Type: viewer.SingleClick, Pixel: viewer.Pixel{X: 450, Y: 300}}
	if snap, _ := s.Handle(hider.ID, v, click); snap.Popup.Visible {
		t.Error("hidden layer should not be picked")
	}
	if snap, _ := s.Handle(other.ID, v, click); !snap.Popup.Visible {
		t.Error("another session's toggle hid the routes")
	}
}

func TestSessionHugeResolution(t *testing.T) {
	s, v := newSessions(t, nil)
	sess := s.Create()
	v.Resolution = 1e7
	snap, err := s.Handle(sess.ID, v, viewer.Event{Type: viewer.SingleClick, Pixel: viewer.Pixel{X: 400, Y: 300}})
	if err != nil || snap.Popup.Visible {
		t.Errorf("snap=%+v err=%v", snap, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, v := newSessions(t, nil)

	if _, err := s.Handle("nope", v, viewer.Event{Type: viewer.SingleClick}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err=%v, want ErrSessionNotFound", err)
	}

	a := s.Create()
	if got := s.Ensure(a.ID); got != a {
		t.Error("Ensure should return the live session")
	}
	b := s.Ensure("expired-id")
	if b.ID == a.ID || s.Len() != 2 {
		t.Errorf("Ensure should create a new session, len=%d", s.Len())
	}

	if n := s.Sweep(time.Now()); n != 0 {
		t.Errorf("swept %d fresh sessions", n)
	}
	if n := s.Sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Errorf("len=%d after sweep", s.Len())
	}

	c := s.Create()
	if !s.Delete(c.ID) || s.Delete(c.ID) {
		t.Error("Delete should succeed once")
	}
}

func TestEventBusSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()

	for i := 0; i < 100; i++ {
		bus.Publish(Event{Resource: ResourceLayers, Action: ActionToggled})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d events, want %d", len(ch), cap(ch))
	}

	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)
	if bus.Subscribers() != 0 {
		t.Errorf("subscribers=%d", bus.Subscribers())
	}

	var nilBus *EventBus
	nilBus.Publish(Event{})
}
