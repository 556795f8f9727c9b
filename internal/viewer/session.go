package viewer

import (
	"sync"
	"time"
)

// Session is one viewer instance: an event source with the picker,
// presenter and cursor handlers registered on it.
type Session struct {
	ID string

	mu         sync.Mutex
	dispatcher *Dispatcher
	picker     *Picker
	presenter  *Presenter
	cursor     *Cursor
	lastSeen   time.Time
}

// NewSession wires the core handlers for a canvas and popup collaborators.
func NewSession(id string, canvas Canvas, overlay Overlay, surface Surface) *Session {
	s := &Session{
		ID:         id,
		dispatcher: NewDispatcher(),
		picker:     NewPicker(canvas),
		presenter:  NewPresenter(overlay, surface),
		cursor:     NewCursor(canvas),
		lastSeen:   time.Now(),
	}
	Register(s.dispatcher, s.picker, s.presenter, s.cursor)
	return s
}

// Register attaches the click and pointer-move handlers to an event source.
func Register(src EventSource, picker *Picker, presenter *Presenter, cursor *Cursor) {
	src.On(SingleClick, func(ev Event) {
		presenter.Present(picker.PickAt(ev.Pixel), ev.Coordinate)
	})
	src.On(PointerMove, func(ev Event) {
		cursor.OnHover(ev.Pixel, ev.Dragging)
	})
}

// Do runs fn with exclusive access to the session, so a caller can update
// collaborators, emit and read back state as one step.
func (s *Session) Do(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	fn(s)
}

// Emit delivers an event to the registered handlers. Call within Do.
func (s *Session) Emit(ev Event) {
	s.dispatcher.Emit(ev)
}

// Dismiss closes the popup. Call within Do.
func (s *Session) Dismiss() bool {
	return s.presenter.Dismiss()
}

// Popup returns the popup state. Call within Do.
func (s *Session) Popup() PopupState {
	return s.presenter.State()
}

// Idle reports how long the session has gone without events.
func (s *Session) Idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
