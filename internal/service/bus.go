package service

import "sync"

// Event resources and actions published on the bus.
const (
	ResourceLayers   = "layers"
	ResourcePopup    = "popup"
	ResourceSessions = "sessions"

	ActionToggled = "toggled"
	ActionShown   = "shown"
	ActionHidden  = "hidden"
	ActionCreated = "created"
	ActionExpired = "expired"
)

// Event represents a change in viewer state.
type Event struct {
	Resource string // e.g. "layers"
	Action   string // "toggled", "shown", "hidden", ...
	ID       string // layer or session ID
	Session  string // originating session, if any
}

// EventBus is a simple fan-out pub/sub for viewer events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
