package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// Screen implements Backend on a full-screen tcell terminal. The serialized
// output occupies a single row; ResetLine clears that row and rewinds the
// column, Write draws grapheme clusters from the current column onwards.
type Screen struct {
	screen tcell.Screen
	row    int
	col    int
	style  tcell.Style
	mu     sync.Mutex
	closed bool
}

var _ Backend = (*Screen)(nil)

// NewScreen creates a screen backend on the controlling terminal.
func NewScreen() (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewScreenWith(screen), nil
}

// NewScreenWith wraps an existing tcell screen, such as a simulation screen.
func NewScreenWith(screen tcell.Screen) *Screen {
	return &Screen{screen: screen, style: tcell.StyleDefault}
}

// SetRow selects the row the output is drawn on.
func (s *Screen) SetRow(row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row >= 0 {
		s.row = row
	}
}

func (s *Screen) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.screen.Init(); err != nil {
		return err
	}
	s.screen.HideCursor()
	s.screen.Clear()
	return nil
}

func (s *Screen) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.screen.Fini()
}

func (s *Screen) ResetLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	width, _ := s.screen.Size()
	for x := 0; x < width; x++ {
		s.screen.SetContent(x, s.row, ' ', nil, s.style)
	}
	s.col = 0
	return nil
}

func (s *Screen) Write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	width, _ := s.screen.Size()

	g := uniseg.NewGraphemes(text)
	for g.Next() {
		w := g.Width()
		if s.col+w > width {
			break
		}
		runes := g.Runes()
		if len(runes) == 0 {
			continue
		}
		s.screen.SetContent(s.col, s.row, runes[0], runes[1:], s.style)
		s.col += w
	}
	s.screen.Show()
	return nil
}

// Column returns the column the next Write starts at.
func (s *Screen) Column() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col
}

func (s *Screen) PollEvent() Event {
	ev := s.screen.PollEvent()
	if ev == nil {
		return Event{Type: EventClosed}
	}
	return convertEvent(ev)
}

func (s *Screen) PostEvent(event Event) {
	// For now, we only support posting key events
	if event.Type == EventKey {
		tcellEv := tcell.NewEventKey(convertToTcellKey(event.Key), event.Rune, convertToTcellMod(event.Mod))
		_ = s.screen.PostEvent(tcellEv) // best-effort; event queue may be full
	}
}

// convertEvent converts tcell events to our Event type.
func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return Event{
			Type: EventKey,
			Key:  convertKey(e.Key()),
			Rune: e.Rune(),
			Mod:  convertMod(e.Modifiers()),
		}

	case *tcell.EventResize:
		w, h := e.Size()
		return Event{
			Type:   EventResize,
			Width:  w,
			Height: h,
		}

	default:
		return Event{Type: EventNone}
	}
}

// convertKey converts tcell key to our Key type.
func convertKey(k tcell.Key) Key {
	switch k {
	case tcell.KeyRune:
		return KeyRune
	case tcell.KeyEnter:
		return KeyEnter
	case tcell.KeyEscape:
		return KeyEscape
	case tcell.KeyTab:
		return KeyTab
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return KeyBackspace
	case tcell.KeyUp:
		return KeyUp
	case tcell.KeyDown:
		return KeyDown
	case tcell.KeyLeft:
		return KeyLeft
	case tcell.KeyRight:
		return KeyRight
	case tcell.KeyCtrlC:
		return KeyCtrlC
	case tcell.KeyCtrlD:
		return KeyCtrlD
	default:
		return KeyNone
	}
}

// convertToTcellKey converts our Key to tcell.Key.
func convertToTcellKey(k Key) tcell.Key {
	switch k {
	case KeyEnter:
		return tcell.KeyEnter
	case KeyEscape:
		return tcell.KeyEscape
	case KeyTab:
		return tcell.KeyTab
	case KeyBackspace:
		return tcell.KeyBackspace2
	case KeyUp:
		return tcell.KeyUp
	case KeyDown:
		return tcell.KeyDown
	case KeyLeft:
		return tcell.KeyLeft
	case KeyRight:
		return tcell.KeyRight
	case KeyCtrlC:
		return tcell.KeyCtrlC
	case KeyCtrlD:
		return tcell.KeyCtrlD
	default:
		return tcell.KeyRune
	}
}

// convertMod converts tcell modifier mask to our ModMask.
func convertMod(m tcell.ModMask) ModMask {
	var result ModMask
	if m&tcell.ModShift != 0 {
		result |= ModShift
	}
	if m&tcell.ModCtrl != 0 {
		result |= ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		result |= ModAlt
	}
	if m&tcell.ModMeta != 0 {
		result |= ModMeta
	}
	return result
}

// convertToTcellMod converts our ModMask to tcell.ModMask.
func convertToTcellMod(m ModMask) tcell.ModMask {
	var result tcell.ModMask
	if m&ModShift != 0 {
		result |= tcell.ModShift
	}
	if m&ModCtrl != 0 {
		result |= tcell.ModCtrl
	}
	if m&ModAlt != 0 {
		result |= tcell.ModAlt
	}
	if m&ModMeta != 0 {
		result |= tcell.ModMeta
	}
	return result
}
