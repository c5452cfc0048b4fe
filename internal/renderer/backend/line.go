package backend

import (
	"bufio"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"
)

// Line implements Backend as a single refreshed line on a byte stream.
// Each flush emits the reset sequence followed by the full text.
type Line struct {
	mu sync.Mutex

	out   io.Writer
	in    io.Reader
	reset string
	raw   bool

	fd       int
	oldState *term.State

	events chan Event
	done   chan struct{}
	closed bool
}

var _ Backend = (*Line)(nil)

// LineOption configures a Line backend.
type LineOption func(*Line)

// WithResetSequence overrides DefaultResetSequence.
func WithResetSequence(seq string) LineOption {
	return func(l *Line) {
		l.reset = seq
	}
}

// WithRawInput controls whether Init switches a terminal input to raw mode.
func WithRawInput(enable bool) LineOption {
	return func(l *Line) {
		l.raw = enable
	}
}

// NewLine creates a line backend writing to out and reading keys from in.
// in may be nil for an output-only backend.
func NewLine(out io.Writer, in io.Reader, opts ...LineOption) *Line {
	l := &Line{
		out:    out,
		in:     in,
		reset:  DefaultResetSequence,
		raw:    true,
		fd:     -1,
		events: make(chan Event, 100),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewStdioLine creates a line backend on the process's stdout and stdin.
func NewStdioLine(opts ...LineOption) *Line {
	return NewLine(os.Stdout, os.Stdin, opts...)
}

// Init puts a terminal input into raw mode and starts reading keys.
func (l *Line) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if f, ok := l.in.(*os.File); ok && l.raw {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			state, err := term.MakeRaw(fd)
			if err != nil {
				return err
			}
			l.fd = fd
			l.oldState = state
		}
	}

	if l.in != nil {
		go l.readLoop(bufio.NewReader(l.in))
	}
	return nil
}

// Shutdown restores the terminal mode. The input reader goroutine may stay
// blocked in Read until the process exits; PollEvent no longer waits on it.
func (l *Line) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	if l.oldState != nil {
		_ = term.Restore(l.fd, l.oldState) // best-effort; terminal may be gone
		l.oldState = nil
	}
	close(l.done)
}

// IsRaw reports whether the input is in raw mode.
func (l *Line) IsRaw() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.oldState != nil
}

func (l *Line) ResetLine() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	_, err := io.WriteString(l.out, l.reset)
	return err
}

func (l *Line) Write(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	_, err := io.WriteString(l.out, text)
	return err
}

func (l *Line) PollEvent() Event {
	select {
	case ev := <-l.events:
		return ev
	case <-l.done:
		return Event{Type: EventClosed}
	}
}

func (l *Line) PostEvent(event Event) {
	select {
	case l.events <- event:
	case <-l.done:
	default:
		// Event dropped if queue is full
	}
}

// readLoop decodes keys until the input ends.
func (l *Line) readLoop(r *bufio.Reader) {
	for {
		ev, err := decodeKey(r)
		if err != nil {
			// EOF or a read failure both end input.
			ev = Event{Type: EventClosed}
			select {
			case l.events <- ev:
			case <-l.done:
			}
			return
		}
		if ev.Type == EventNone {
			continue
		}
		select {
		case l.events <- ev:
		case <-l.done:
			return
		}
	}
}

// decodeKey reads one key from a raw-mode byte stream.
func decodeKey(r *bufio.Reader) (Event, error) {
	b, err := r.ReadByte()
	if err != nil {
		return Event{}, err
	}

	key := func(k Key) Event { return Event{Type: EventKey, Key: k} }

	switch b {
	case '\r', '\n':
		return key(KeyEnter), nil
	case '\t':
		return key(KeyTab), nil
	case 0x03:
		return Event{Type: EventKey, Key: KeyCtrlC, Mod: ModCtrl}, nil
	case 0x04:
		return Event{Type: EventKey, Key: KeyCtrlD, Mod: ModCtrl}, nil
	case 0x7f, 0x08:
		return key(KeyBackspace), nil
	case 0x1b:
		return decodeEscape(r), nil
	}

	if b < 0x20 {
		return Event{}, nil
	}
	if b < utf8.RuneSelf {
		return Event{Type: EventKey, Key: KeyRune, Rune: rune(b)}, nil
	}

	if err := r.UnreadByte(); err != nil {
		return Event{}, err
	}
	ch, _, err := r.ReadRune()
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventKey, Key: KeyRune, Rune: ch}, nil
}

// decodeEscape handles ESC and the CSI arrow sequences. Only bytes already
// buffered are inspected so a lone ESC is reported immediately.
func decodeEscape(r *bufio.Reader) Event {
	esc := Event{Type: EventKey, Key: KeyEscape}
	if r.Buffered() < 2 {
		return esc
	}
	next, err := r.Peek(2)
	if err != nil || next[0] != '[' {
		return esc
	}

	var k Key
	switch next[1] {
	case 'A':
		k = KeyUp
	case 'B':
		k = KeyDown
	case 'C':
		k = KeyRight
	case 'D':
		k = KeyLeft
	default:
		return esc
	}
	_, _ = r.Discard(2)
	return Event{Type: EventKey, Key: k}
}
