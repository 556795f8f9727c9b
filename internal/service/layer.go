package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joeblew999/plat-camino/internal/config"
)

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrBaseRequired  = errors.New("a base layer must stay visible")
)

// LayerService holds the layer tree as configured. It is read-only; each
// viewer session changes visibility on its own LayerState.
type LayerService struct {
	bus    *EventBus
	order  []string
	layers map[string]LayerInfo
	groups []GroupInfo
}

// NewLayerService builds the layer tree from the map configuration.
func NewLayerService(cfg *config.Config, bus *EventBus) *LayerService {
	s := &LayerService{
		bus:    bus,
		layers: make(map[string]LayerInfo),
	}
	for _, g := range cfg.Groups {
		group := GroupInfo{ID: g.ID, Title: g.Title, Fold: g.Fold}
		for _, l := range g.Layers {
			s.layers[l.ID] = LayerInfo{
				ID:           l.ID,
				Title:        l.Title,
				Group:        g.ID,
				GroupTitle:   g.Title,
				Kind:         l.Kind,
				Base:         l.Base,
				Visible:      l.Visible,
				URL:          l.URL,
				Params:       l.Params,
				Attributions: l.Attributions,
			}
			s.order = append(s.order, l.ID)
			group.Layers = append(group.Layers, l.ID)
		}
		s.groups = append(s.groups, group)
	}
	return s
}

// List returns all layers in configuration order with their initial
// visibility.
func (s *LayerService) List() []LayerInfo {
	result := make([]LayerInfo, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.layers[id])
	}
	return result
}

// Groups returns the layer switcher folders.
func (s *LayerService) Groups() []GroupInfo {
	result := make([]GroupInfo, len(s.groups))
	for i, g := range s.groups {
		g.Layers = append([]string(nil), g.Layers...)
		result[i] = g
	}
	return result
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerInfo, bool) {
	layer, ok := s.layers[id]
	return layer, ok
}

// Visible reports whether a layer is shown initially. Unknown layers are
// visible so that scene layers without a switcher entry stay pickable.
func (s *LayerService) Visible(id string) bool {
	layer, ok := s.layers[id]
	return !ok || layer.Visible
}

// NewState starts a session's visibility from the configured one.
func (s *LayerService) NewState(session string) *LayerState {
	st := &LayerState{
		tree:    s,
		session: session,
		visible: make(map[string]bool, len(s.layers)),
	}
	for id, l := range s.layers {
		st.visible[id] = l.Visible
	}
	return st
}

// LayerState is one session's layer visibility. Base layers behave as a
// radio group: exactly one is visible at any time. Safe for concurrent use.
type LayerState struct {
	tree    *LayerService
	session string

	mu      sync.RWMutex
	visible map[string]bool
}

// Visible reports whether a layer is shown. Unknown layers are visible.
func (st *LayerState) Visible(id string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	v, ok := st.visible[id]
	return !ok || v
}

// List returns all layers in configuration order with this session's
// visibility.
func (st *LayerState) List() []LayerInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := st.tree.List()
	for i := range result {
		result[i].Visible = st.visible[result[i].ID]
	}
	return result
}

// Get returns a layer by ID with this session's visibility.
func (st *LayerState) Get(id string) (LayerInfo, bool) {
	layer, ok := st.tree.Get(id)
	if !ok {
		return LayerInfo{}, false
	}
	st.mu.RLock()
	layer.Visible = st.visible[id]
	st.mu.RUnlock()
	return layer, true
}

// SetVisible shows or hides a layer. Showing a base layer hides the other
// base layers; hiding the visible base layer is refused.
func (st *LayerState) SetVisible(id string, visible bool) (LayerInfo, error) {
	st.mu.Lock()
	layer, err := st.setVisibleLocked(id, visible)
	st.mu.Unlock()
	if err != nil {
		return LayerInfo{}, err
	}

	st.tree.bus.Publish(Event{Resource: ResourceLayers, Action: ActionToggled, ID: id, Session: st.session})
	return layer, nil
}

// Toggle flips a layer's visibility. Toggling the visible base layer is a
// no-op since one base layer must stay on.
func (st *LayerState) Toggle(id string) (LayerInfo, error) {
	layer, ok := st.Get(id)
	if !ok {
		return LayerInfo{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	if layer.Base && layer.Visible {
		return layer, nil
	}
	return st.SetVisible(id, !layer.Visible)
}

func (st *LayerState) setVisibleLocked(id string, visible bool) (LayerInfo, error) {
	layer, ok := st.tree.Get(id)
	if !ok {
		return LayerInfo{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	layer.Visible = st.visible[id]

	if layer.Base {
		if !visible {
			if layer.Visible {
				return LayerInfo{}, ErrBaseRequired
			}
			return layer, nil
		}
		for oid := range st.visible {
			if other, _ := st.tree.Get(oid); other.Base && oid != id {
				st.visible[oid] = false
			}
		}
	}

	st.visible[id] = visible
	layer.Visible = visible
	return layer, nil
}
