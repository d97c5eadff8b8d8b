package engine

import (
	"snipd/internal/keystroke"
	"snipd/internal/scancode"
)

// Buffer reset reasons reported to metrics.
const (
	resetInvalid = "invalid_key"
	resetSpace   = "terminator"
)

// printable reports whether r may be part of an abbreviation. Control
// characters, DEL and the C1 range are not.
func printable(r rune) bool {
	return r >= 32 && !(r >= 127 && r <= 159)
}

// handleKey applies one key event to the buffer. It returns the match
// produced by a terminator, if any.
func (e *Engine) handleKey(ev keystroke.KeyEvent) (Match, bool) {
	switch ev.Kind {
	case keystroke.KindSpace:
		seq := e.buffer.Snapshot()
		e.buffer.Clear()
		e.metrics.RecordBufferReset(resetSpace)
		return e.lookup(seq)

	case keystroke.KindBackspace:
		e.buffer.Pop()
		return Match{}, false

	case keystroke.KindModifier:
		return Match{}, false

	case keystroke.KindChar:
		if ev.ScanCode == 0 || !ev.HasChar || !printable(ev.Char) {
			e.resetBuffer(resetInvalid)
			return Match{}, false
		}
		e.buffer.Push(ev.ScanCode)
		return Match{}, false

	default:
		e.resetBuffer(resetInvalid)
		return Match{}, false
	}
}

func (e *Engine) resetBuffer(reason string) {
	if e.buffer.Len() == 0 {
		return
	}
	e.buffer.Clear()
	e.metrics.RecordBufferReset(reason)
}

// lookup matches seq against the current index and logs diagnostics for
// buffers that look like abbreviations.
func (e *Engine) lookup(seq scancode.Sequence) (Match, bool) {
	m, reason, ok := match(e.index.Load(), seq, e.focus)
	if reason == MissEmpty {
		return Match{}, false
	}
	diag := scancode.IsDotPrefix(seq)

	if !ok {
		e.metrics.RecordMiss(string(reason))
		if diag {
			msg := "no snippet for sequence"
			if reason == MissFiltered {
				msg = "snippet filtered by window"
			}
			e.logger.Info(msg, "sequence", seq.String(), "process", e.activeProcess())
		}
		return Match{}, false
	}

	if diag {
		e.logger.Info("snippet fired",
			"abbreviation", m.Entry.Abbreviation,
			"sequence", seq.String(),
			"process", e.activeProcess(),
		)
	}
	return m, true
}

func (e *Engine) activeProcess() string {
	if e.focus == nil {
		return "unknown"
	}
	w, err := e.focus.ActiveWindow()
	if err != nil || w.Process == "" {
		return "unknown"
	}
	return w.Process
}
