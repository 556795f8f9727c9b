package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-camino/internal/mapview"
	"github.com/joeblew999/plat-camino/internal/viewer"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 30 * time.Minute

// Session is a viewer session bound to the shared scene. Its layer
// visibility is its own.
type Session struct {
	*viewer.Session
	Canvas *mapview.Canvas
	Layers *LayerState
	popup  *popupView
}

// Snapshot is what a browser needs to redraw after an event.
type Snapshot struct {
	Session string
	Popup   viewer.PopupState
	Cursor  string
	// BlurCloser is set when the popup's close control must lose focus.
	BlurCloser bool
}

// popupView records what the presenter asked of the overlay and the popup
// markup until the next snapshot is taken.
type popupView struct {
	position *orb.Point
	content  string
	blur     bool
}

func (p *popupView) SetPosition(pos *orb.Point) { p.position = pos }
func (p *popupView) SetContent(html string)     { p.content = html }
func (p *popupView) BlurCloser()                { p.blur = true }

// SessionService creates and expires viewer sessions.
type SessionService struct {
	scene  *mapview.Scene
	layers *LayerService
	bus    *EventBus
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService creates a session registry over a scene. Each session
// starts from the layer tree's configured visibility.
func NewSessionService(scene *mapview.Scene, layers *LayerService, bus *EventBus, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		scene:    scene,
		layers:   layers,
		bus:      bus,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (s *SessionService) Create() *Session {
	id := uuid.NewString()
	layers := s.layers.NewState(id)
	canvas := mapview.NewCanvas(s.scene, layers)
	popup := &popupView{}
	sess := &Session{
		Session: viewer.NewSession(id, canvas, popup, popup),
		Canvas:  canvas,
		Layers:  layers,
		popup:   popup,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Debug().Str("session", sess.ID).Msg("Viewer session created")
	s.bus.Publish(Event{Resource: ResourceSessions, Action: ActionCreated, ID: sess.ID, Session: sess.ID})
	return sess
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Ensure returns the session for id, creating a fresh one when id is empty
// or has expired.
func (s *SessionService) Ensure(id string) *Session {
	if sess, ok := s.Get(id); ok {
		return sess
	}
	return s.Create()
}

// Delete ends a session.
func (s *SessionService) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Handle delivers a browser event to a session. The viewport is the view
// the pixel refers to. A zero coordinate is derived from the viewport.
func (s *SessionService) Handle(id string, v mapview.Viewport, ev viewer.Event) (Snapshot, error) {
	sess, ok := s.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	var snap Snapshot
	var was bool
	sess.Do(func(vs *viewer.Session) {
		was = vs.Popup().Visible
		sess.Canvas.SetViewport(v)
		if ev.Coordinate == (orb.Point{}) && v.Valid() {
			ev.Coordinate = v.CoordinateAt(ev.Pixel.X, ev.Pixel.Y)
		}
		vs.Emit(ev)
		snap = sess.snapshotLocked()
	})

	s.publishPopup(sess.ID, was, snap.Popup)
	return snap, nil
}

// Dismiss closes the session's popup.
func (s *SessionService) Dismiss(id string) (Snapshot, error) {
	sess, ok := s.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}

	var snap Snapshot
	var was bool
	sess.Do(func(vs *viewer.Session) {
		was = vs.Popup().Visible
		vs.Dismiss()
		snap = sess.snapshotLocked()
	})

	s.publishPopup(sess.ID, was, snap.Popup)
	return snap, nil
}

// Snapshot returns the current state of a session without delivering an
// event.
func (s *SessionService) Snapshot(id string) (Snapshot, error) {
	sess, ok := s.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	var snap Snapshot
	sess.Do(func(*viewer.Session) {
		snap = sess.snapshotLocked()
	})
	return snap, nil
}

// Sweep removes sessions idle for longer than the TTL.
func (s *SessionService) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.Idle(now) > s.ttl {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.bus.Publish(Event{Resource: ResourceSessions, Action: ActionExpired, ID: id, Session: id})
	}
	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Msg("Swept idle viewer sessions")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (s *SessionService) Run(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func (s *SessionService) publishPopup(id string, was bool, now viewer.PopupState) {
	switch {
	case now.Visible:
		s.bus.Publish(Event{Resource: ResourcePopup, Action: ActionShown, ID: id, Session: id})
	case was:
		s.bus.Publish(Event{Resource: ResourcePopup, Action: ActionHidden, ID: id, Session: id})
	}
}

// snapshotLocked reads the session state. Callers run inside Do.
func (sess *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Session:    sess.ID,
		Popup:      sess.Popup(),
		Cursor:     sess.Canvas.Cursor(),
		BlurCloser: sess.popup.blur,
	}
	sess.popup.blur = false
	return snap
}
