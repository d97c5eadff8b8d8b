// Package keystroke observes and synthesizes keyboard input.
//
// Observation goes through a Hook, which reports one KeyEvent per key-down
// carrying the hardware scan code and, when the key produces one, the
// character under the active layout. Synthesis goes through an Injector,
// which sends scan-code key events so the result is independent of the
// layout the user has selected.
//
// Platform support:
// - Windows: WH_KEYBOARD_LL hook, SendInput, GetLastInputInfo
// - Other platforms: stubs returning ErrNotAvailable
package keystroke

import (
	"errors"
	"sync"
	"time"
	"unicode"

	"snipd/internal/scancode"
)

// Kind classifies a key event for the listener.
type Kind int

const (
	// KindOther is a key that produces no character (arrows, function keys).
	KindOther Kind = iota
	// KindChar is a key that produced a character under the active layout.
	KindChar
	// KindSpace is the terminator key.
	KindSpace
	// KindBackspace erases one buffered key.
	KindBackspace
	// KindModifier is Shift, Ctrl, Alt, Win or CapsLock on its own.
	KindModifier
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindSpace:
		return "space"
	case KindBackspace:
		return "backspace"
	case KindModifier:
		return "modifier"
	default:
		return "other"
	}
}

// KeyEvent is a single key-down observed by a Hook.
type KeyEvent struct {
	Kind     Kind
	ScanCode scancode.Code // zero when the OS reported none
	Char     rune
	HasChar  bool
	Time     time.Time
}

// Hook delivers global key-down events.
//
// The sink runs on the hook's own thread and must return quickly. Done is
// closed when the session ends, whether through Stop or because the OS
// tore the hook down.
type Hook interface {
	Start(sink func(KeyEvent)) error
	Stop() error
	Done() <-chan struct{}
}

// Injector synthesizes key events by scan code. Extended keys (arrows,
// Insert, Delete) need the extended flag.
type Injector interface {
	Press(code scancode.Code, extended bool) error
	Release(code scancode.Code, extended bool) error
	Tap(code scancode.Code, extended bool) error
}

// Clipboard reads and writes plain text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// IdleTimer reports the time since the last user input anywhere on the
// system. ok is false when the OS cannot tell.
type IdleTimer interface {
	IdleTime() (idle time.Duration, ok bool)
}

// ErrNotAvailable is returned when keyboard hooking isn't available.
var ErrNotAvailable = errors.New("keyboard hook not available on this platform")

// ErrAlreadyRunning is returned when Start is called while already running.
var ErrAlreadyRunning = errors.New("hook already running")

// ErrPartialSend is returned when the OS accepted fewer input events than
// were submitted.
var ErrPartialSend = errors.New("input injection partially sent")

// BaseHook provides the session bookkeeping shared by hook implementations.
type BaseHook struct {
	mu      sync.RWMutex
	running bool
	sink    func(KeyEvent)
	done    chan struct{}
}

// begin marks a new session as running and returns its done channel.
func (b *BaseHook) begin(sink func(KeyEvent)) (chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, ErrAlreadyRunning
	}
	b.running = true
	b.sink = sink
	b.done = make(chan struct{})
	return b.done, nil
}

// end marks the session finished and closes its done channel once.
func (b *BaseHook) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	b.sink = nil
	close(b.done)
}

// emit forwards an event to the current sink, if any.
func (b *BaseHook) emit(ev KeyEvent) {
	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink != nil {
		sink(ev)
	}
}

// IsRunning returns the running state.
func (b *BaseHook) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Done returns a channel closed when the current session ends. Before the
// first Start it returns a closed channel.
func (b *BaseHook) Done() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return b.done
}

// SimulatedHook is a hook for testing that doesn't touch the real keyboard.
type SimulatedHook struct {
	BaseHook

	stateMu  sync.Mutex
	starts   int
	startErr error
}

// NewSimulated creates a hook for testing.
func NewSimulated() *SimulatedHook {
	return &SimulatedHook{}
}

// FailNextStart makes the next Start return err.
func (s *SimulatedHook) FailNextStart(err error) {
	s.stateMu.Lock()
	s.startErr = err
	s.stateMu.Unlock()
}

// Start begins a simulated session.
func (s *SimulatedHook) Start(sink func(KeyEvent)) error {
	s.stateMu.Lock()
	err := s.startErr
	s.startErr = nil
	s.stateMu.Unlock()
	if err != nil {
		return err
	}

	if _, err := s.begin(sink); err != nil {
		return err
	}
	s.stateMu.Lock()
	s.starts++
	s.stateMu.Unlock()
	return nil
}

// Stop ends the simulated session.
func (s *SimulatedHook) Stop() error {
	s.end()
	return nil
}

// Detach ends the session as if the OS had dropped the hook.
func (s *SimulatedHook) Detach() {
	s.end()
}

// Starts returns how many sessions have been started.
func (s *SimulatedHook) Starts() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.starts
}

// Send delivers an event if a session is running.
func (s *SimulatedHook) Send(ev KeyEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.emit(ev)
}

// Type sends one KindChar event per character, resolving scan codes with
// the given layout. Characters without a mapping are sent with a zero scan
// code. A space is sent as KindSpace.
func (s *SimulatedHook) Type(layout scancode.Layout, text string) {
	for _, r := range text {
		if r == ' ' {
			s.Send(KeyEvent{Kind: KindSpace, ScanCode: scancode.Space, Char: ' ', HasChar: true})
			continue
		}
		code, _ := layout.Lookup(unicode.ToLower(r))
		s.Send(KeyEvent{Kind: KindChar, ScanCode: code, Char: r, HasChar: true})
	}
}
