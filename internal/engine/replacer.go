package engine

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"snipd/internal/focus"
	"snipd/internal/keystroke"
	"snipd/internal/scancode"
)

// Replacement methods.
const (
	MethodRich    = "rich"
	MethodGeneric = "generic"
)

// Replacement outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeClipboardError = "clipboard_error"
	OutcomeInjectError    = "inject_error"
)

// DefaultRichTextHosts are executables that receive the backspace and
// Ctrl+V procedure instead of select-and-paste.
var DefaultRichTextHosts = []string{"winword.exe"}

// Pauses between injected keys.
const (
	clipboardSettle = 50 * time.Millisecond
	backspaceGap    = 10 * time.Millisecond
	selectSettle    = 30 * time.Millisecond
	stepSettle      = 50 * time.Millisecond
)

type stepKind int

const (
	stepPress stepKind = iota
	stepRelease
	stepTap
	stepPause
)

type step struct {
	kind  stepKind
	code  scancode.Code
	pause time.Duration
}

func key(kind stepKind, c scancode.Code) step { return step{kind: kind, code: c} }
func pause(d time.Duration) step              { return step{kind: stepPause, pause: d} }

// richScript erases n+1 characters (the abbreviation and the space) with
// backspace and pastes with Ctrl+V.
func richScript(n int) []step {
	s := make([]step, 0, 2*(n+1)+5)
	for i := 0; i <= n; i++ {
		s = append(s, key(stepTap, scancode.Backspace), pause(backspaceGap))
	}
	return append(s,
		pause(stepSettle),
		key(stepPress, scancode.Ctrl),
		key(stepTap, scancode.V),
		key(stepRelease, scancode.Ctrl),
		pause(stepSettle),
	)
}

// genericScript selects n+1 characters with Shift+Left, deletes them and
// pastes with Shift+Insert.
func genericScript(n int) []step {
	s := make([]step, 0, n+12)
	s = append(s, key(stepPress, scancode.Shift))
	for i := 0; i <= n; i++ {
		s = append(s, key(stepTap, scancode.Left))
	}
	return append(s,
		key(stepRelease, scancode.Shift),
		pause(selectSettle),
		key(stepTap, scancode.Delete),
		pause(stepSettle),
		key(stepPress, scancode.Shift),
		key(stepTap, scancode.Insert),
		key(stepRelease, scancode.Shift),
		pause(stepSettle),
	)
}

// replaceResult describes one replacement attempt.
type replaceResult struct {
	Method   string
	Outcome  string
	Process  string
	Sent     int
	Expected int
	Err      error
}

type replacer struct {
	clipboard keystroke.Clipboard
	injector  keystroke.Injector
	focus     focus.Querier
	sleep     func(time.Duration)
	richHosts map[string]struct{}
	busy      *atomic.Bool
	logger    *slog.Logger
}

func newRichHosts(hosts []string) map[string]struct{} {
	m := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			m[strings.ToLower(h)] = struct{}{}
		}
	}
	return m
}

// replace runs the replacement procedure for m. It reports false, without
// touching anything, when another replacement holds the busy flag.
func (r *replacer) replace(m Match) (replaceResult, bool) {
	if !r.busy.CompareAndSwap(false, true) {
		return replaceResult{}, false
	}
	defer r.busy.Store(false)

	res := replaceResult{Method: MethodGeneric}
	if r.focus != nil {
		if w, err := r.focus.ActiveWindow(); err == nil {
			res.Process = w.Process
		}
	}
	if _, ok := r.richHosts[strings.ToLower(res.Process)]; ok && res.Process != "" {
		res.Method = MethodRich
	}

	saved, err := r.clipboard.ReadText()
	hasSaved := err == nil
	if err != nil && !errors.Is(err, keystroke.ErrNotAvailable) {
		r.logger.Warn("read clipboard", "error", err)
	}
	if hasSaved {
		defer func() {
			if err := r.clipboard.WriteText(saved); err != nil {
				r.logger.Warn("restore clipboard", "error", err)
			}
		}()
	}

	if err := r.clipboard.WriteText(m.Text()); err != nil {
		r.logger.Error("write clipboard", "error", err)
		res.Outcome = OutcomeClipboardError
		res.Err = err
		return res, true
	}
	r.sleep(clipboardSettle)

	script := genericScript(m.Committed)
	if res.Method == MethodRich {
		script = richScript(m.Committed)
	}
	res.Sent, res.Expected, res.Err = r.run(script)
	if res.Err != nil {
		r.logger.Error("key injection failed",
			"method", res.Method,
			"sent", res.Sent,
			"expected", res.Expected,
			"error", res.Err,
		)
		res.Outcome = OutcomeInjectError
		return res, true
	}
	res.Outcome = OutcomeOK
	return res, true
}

// run executes a script. After the first failure the remaining keys are
// skipped, except releases of modifiers that are still held.
func (r *replacer) run(script []step) (sent, expected int, err error) {
	held := make(map[scancode.Code]bool)
	for _, s := range script {
		if s.kind == stepPause {
			if err == nil {
				r.sleep(s.pause)
			}
			continue
		}
		expected++
		if err != nil && !(s.kind == stepRelease && held[s.code]) {
			continue
		}

		ext := scancode.IsExtended(s.code)
		var e error
		switch s.kind {
		case stepPress:
			e = r.injector.Press(s.code, ext)
		case stepRelease:
			e = r.injector.Release(s.code, ext)
		case stepTap:
			e = r.injector.Tap(s.code, ext)
		}
		if e != nil {
			if err == nil {
				err = e
			}
			continue
		}
		sent++
		switch s.kind {
		case stepPress:
			held[s.code] = true
		case stepRelease:
			delete(held, s.code)
		}
	}
	return sent, expected, err
}
