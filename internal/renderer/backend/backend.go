// Package backend provides output sinks and input sources for the renderer.
package backend

import (
	"errors"
	"sync"
)

// ErrClosed is returned by sinks after Shutdown.
var ErrClosed = errors.New("backend closed")

// DefaultResetSequence returns the cursor to column 0 and erases the line.
const DefaultResetSequence = "\r\x1b[K"

// EventType identifies the type of input event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
	EventClosed
)

// Event represents an input event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune
	Mod  ModMask

	// Resize event fields
	Width, Height int
}

// Key represents a keyboard key.
type Key int

// Key constants for the keys the input pump understands.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEnter
	KeyEscape
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
	KeyCtrlD
)

// String returns a lower-case key name.
func (k Key) String() string {
	switch k {
	case KeyRune:
		return "rune"
	case KeyEnter:
		return "enter"
	case KeyEscape:
		return "escape"
	case KeyTab:
		return "tab"
	case KeyBackspace:
		return "backspace"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyCtrlC:
		return "ctrl+c"
	case KeyCtrlD:
		return "ctrl+d"
	default:
		return "none"
	}
}

// ModMask represents modifier key state.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has returns true if the mask contains the given modifier.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}

// Sink is where serialized text goes.
type Sink interface {
	// ResetLine moves the output cursor back to the start of the line and
	// clears it, so the next Write replaces the previous output.
	ResetLine() error

	// Write appends text to the output.
	Write(text string) error
}

// Backend is a terminal: an output sink plus an input source.
type Backend interface {
	Sink

	// Init prepares the terminal. Must be called before any other method.
	Init() error

	// Shutdown restores the terminal. PollEvent returns an EventClosed
	// event afterwards.
	Shutdown()

	// PollEvent waits for and returns the next input event.
	// This is a blocking call.
	PollEvent() Event

	// PostEvent injects a synthetic event into the input queue.
	PostEvent(event Event)
}

// OpKind identifies a recorded sink call.
type OpKind int

const (
	OpReset OpKind = iota
	OpWrite
)

// Op is one recorded sink call.
type Op struct {
	Kind OpKind
	Text string
}

// NullBackend records sink calls and serves posted events. Used in tests.
type NullBackend struct {
	mu       sync.Mutex
	ops      []Op
	writeErr error
	events   chan Event
	closed   bool
	inited   bool
}

var _ Backend = (*NullBackend)(nil)

// NewNullBackend creates a null backend.
func NewNullBackend() *NullBackend {
	return &NullBackend{events: make(chan Event, 100)}
}

func (b *NullBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inited = true
	return nil
}

func (b *NullBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.events)
}

func (b *NullBackend) ResetLine() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.ops = append(b.ops, Op{Kind: OpReset})
	return nil
}

func (b *NullBackend) Write(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.ops = append(b.ops, Op{Kind: OpWrite, Text: text})
	return nil
}

func (b *NullBackend) PollEvent() Event {
	ev, ok := <-b.events
	if !ok {
		return Event{Type: EventClosed}
	}
	return ev
}

func (b *NullBackend) PostEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.events <- event:
	default:
		// Event dropped if queue is full (non-blocking for testing)
	}
}

// Ops returns a copy of the recorded sink calls.
func (b *NullBackend) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// Writes returns the text of every recorded Write.
func (b *NullBackend) Writes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, op := range b.ops {
		if op.Kind == OpWrite {
			out = append(out, op.Text)
		}
	}
	return out
}

// SetWriteError makes subsequent sink calls fail with err.
func (b *NullBackend) SetWriteError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// Initialized reports whether Init was called.
func (b *NullBackend) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inited
}
