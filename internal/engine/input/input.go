// Package input turns window events into the per-frame input state read by
// the camera and the application loop.
package input

import "unicode"

// EventType identifies an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
)

// Mouse buttons as reported by the window.
const (
	ButtonLeft  = 1
	ButtonRight = 3
)

// KeyEscape is the rune reported for the escape key.
const KeyEscape = '\x1b'

// Event is a window event reduced to what the viewer needs. Key holds the
// upper case rune of letter keys.
type Event struct {
	Type   EventType
	Key    rune
	Width  int
	Height int
	DX, DY float32
	Button uint8
}

// State accumulates events between frames.
type State struct {
	down    map[rune]bool
	pressed map[rune]bool
	left    bool
	dx, dy  float32
	quit    bool

	resized       bool
	width, height int
}

// New creates an empty state.
func New() *State {
	return &State{down: make(map[rune]bool), pressed: make(map[rune]bool)}
}

// BeginFrame clears the per-frame parts: mouse motion, key presses and the
// resize flag. Held keys and buttons persist.
func (s *State) BeginFrame() {
	s.dx, s.dy = 0, 0
	clear(s.pressed)
	s.resized = false
}

// Apply folds one event into the state. Escape requests quit.
func (s *State) Apply(e Event) {
	switch e.Type {
	case EventQuit:
		s.quit = true
	case EventWindowResize:
		s.resized = true
		s.width, s.height = e.Width, e.Height
	case EventKeyDown:
		k := unicode.ToUpper(e.Key)
		if k == KeyEscape {
			s.quit = true
		}
		if !s.down[k] {
			s.pressed[k] = true
		}
		s.down[k] = true
	case EventKeyUp:
		delete(s.down, unicode.ToUpper(e.Key))
	case EventMouseMove:
		s.dx += e.DX
		s.dy += e.DY
	case EventMouseDown:
		if e.Button == ButtonLeft {
			s.left = true
		}
	case EventMouseUp:
		if e.Button == ButtonLeft {
			s.left = false
		}
	}
}

// KeyDown reports whether key is held.
func (s *State) KeyDown(key rune) bool { return s.down[key] }

// Pressed reports whether key went down since BeginFrame. Auto-repeat does
// not count.
func (s *State) Pressed(key rune) bool { return s.pressed[key] }

// MouseLeftDown reports whether the left button is held.
func (s *State) MouseLeftDown() bool { return s.left }

// MouseDelta returns the cursor motion since BeginFrame.
func (s *State) MouseDelta() (dx, dy float32) { return s.dx, s.dy }

// Quit reports whether the window was closed or escape pressed.
func (s *State) Quit() bool { return s.quit }

// RequestQuit sets the quit flag.
func (s *State) RequestQuit() { s.quit = true }

// Resized returns the new window size if a resize arrived this frame.
func (s *State) Resized() (width, height int, ok bool) {
	return s.width, s.height, s.resized
}
