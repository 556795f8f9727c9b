// Package viewer is the interactive core of the route map: it turns click
// and pointer-move events into picks, popup content and cursor changes.
//
// Everything here runs synchronously inside the handler of one event. The
// map canvas, overlay and popup surface are collaborators injected through
// the [Canvas], [Overlay] and [Surface] interfaces.
package viewer

import (
	"sync"

	"github.com/paulmach/orb"
)

// Pixel is a viewport position, origin top-left, y down.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EventType names a map-canvas event.
type EventType string

const (
	SingleClick EventType = "singleclick"
	PointerMove EventType = "pointermove"
)

// Event is the payload delivered with every map-canvas event.
type Event struct {
	Type       EventType
	Pixel      Pixel
	Coordinate orb.Point // EPSG:3857
	Dragging   bool
}

// Handler reacts to one event.
type Handler func(Event)

// EventSource accepts handler registrations.
type EventSource interface {
	On(t EventType, h Handler)
}

// Dispatcher is an EventSource that delivers events serially to the
// handlers registered for their type, in registration order.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[EventType][]Handler
}

// NewDispatcher creates a dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType][]Handler)}
}

// On registers h for events of type t.
func (d *Dispatcher) On(t EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Emit runs every handler for ev.Type to completion before returning.
// Concurrent Emit calls are serialized.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.handlers[ev.Type] {
		h(ev)
	}
}
