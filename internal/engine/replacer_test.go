package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipd/internal/focus"
	"snipd/internal/index"
	"snipd/internal/keystroke"
	"snipd/internal/scancode"
)

const (
	genericBRB = "press:2A tap:4Be tap:4Be tap:4Be tap:4Be tap:4Be release:2A tap:53e press:2A tap:52e release:2A"
	richBRB    = "tap:0E tap:0E tap:0E tap:0E tap:0E press:1D tap:2F release:1D"
)

type sleepRecorder struct {
	pauses []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.pauses = append(s.pauses, d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func brbMatch() Match {
	return Match{
		Entry:     &index.Entry{Abbreviation: ".brb", Text: "be right back"},
		Sequence:  scancode.Sequence{0x34, 0x30, 0x13, 0x30},
		Committed: 4,
	}
}

func newTestReplacer(process string) (*replacer, *keystroke.RecordingInjector, *keystroke.MemoryClipboard, *sleepRecorder) {
	inj := keystroke.NewRecordingInjector()
	clip := keystroke.NewMemoryClipboard("saved")
	rec := &sleepRecorder{}
	r := &replacer{
		clipboard: clip,
		injector:  inj,
		focus:     &focus.Static{Info: focus.Info{Process: process, PID: 7}},
		sleep:     rec.sleep,
		richHosts: newRichHosts(DefaultRichTextHosts),
		busy:      new(atomic.Bool),
		logger:    quietLogger(),
	}
	return r, inj, clip, rec
}

func TestReplaceGeneric(t *testing.T) {
	r, inj, clip, rec := newTestReplacer("notepad.exe")

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, MethodGeneric, res.Method)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "notepad.exe", res.Process)
	assert.Equal(t, genericBRB, inj.Script())
	assert.Equal(t, 11, res.Sent)
	assert.Equal(t, 11, res.Expected)

	assert.Equal(t, []string{"be right back", "saved"}, clip.Writes())
	assert.Equal(t, "saved", clip.Text())
	assert.Equal(t, []time.Duration{
		50 * time.Millisecond, 30 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond,
	}, rec.pauses)
	assert.False(t, r.busy.Load())
}

func TestReplaceRichHost(t *testing.T) {
	r, inj, clip, rec := newTestReplacer("WINWORD.EXE")

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, MethodRich, res.Method)
	assert.Equal(t, richBRB, inj.Script())
	assert.Equal(t, "saved", clip.Text())

	want := []time.Duration{50 * time.Millisecond}
	for i := 0; i < 5; i++ {
		want = append(want, 10*time.Millisecond)
	}
	want = append(want, 50*time.Millisecond, 50*time.Millisecond)
	assert.Equal(t, want, rec.pauses)
}

func TestReplaceUnknownWindowIsGeneric(t *testing.T) {
	r, inj, _, _ := newTestReplacer("")
	r.focus = &focus.Static{Err: focus.ErrNoWindow}

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, MethodGeneric, res.Method)
	assert.Equal(t, genericBRB, inj.Script())
}

func TestReplaceClipboardWriteFails(t *testing.T) {
	r, inj, clip, _ := newTestReplacer("notepad.exe")
	clip.WriteErr = errors.New("clipboard locked")

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, OutcomeClipboardError, res.Outcome)
	assert.Empty(t, inj.Ops(), "no key may be injected after a clipboard failure")
	assert.False(t, r.busy.Load())
}

func TestReplaceNothingToRestore(t *testing.T) {
	r, _, clip, _ := newTestReplacer("notepad.exe")
	clip.ReadErr = errors.New("not text")

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, []string{"be right back"}, clip.Writes())
}

func TestReplaceInjectionFailureReleasesModifiers(t *testing.T) {
	r, inj, clip, _ := newTestReplacer("notepad.exe")
	inj.FailOn = func(op keystroke.Op) bool {
		return op.Action == "tap" && op.Code == scancode.Left
	}

	res, ok := r.replace(brbMatch())
	require.True(t, ok)
	assert.Equal(t, OutcomeInjectError, res.Outcome)
	assert.ErrorIs(t, res.Err, keystroke.ErrPartialSend)
	assert.Equal(t, "press:2A release:2A", inj.Script())
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 11, res.Expected)
	assert.Equal(t, "saved", clip.Text(), "clipboard is restored after a failure")
}

func TestReplaceRichFailureReleasesCtrl(t *testing.T) {
	r, inj, _, _ := newTestReplacer("winword.exe")
	inj.FailOn = func(op keystroke.Op) bool {
		return op.Action == "tap" && op.Code == scancode.V
	}

	res, _ := r.replace(brbMatch())
	assert.Equal(t, OutcomeInjectError, res.Outcome)
	assert.Equal(t, "tap:0E tap:0E tap:0E tap:0E tap:0E press:1D release:1D", inj.Script())
}

func TestReplaceDroppedWhileBusy(t *testing.T) {
	r, inj, clip, _ := newTestReplacer("notepad.exe")
	r.busy.Store(true)

	_, ok := r.replace(brbMatch())
	assert.False(t, ok)
	assert.Empty(t, inj.Ops())
	assert.Empty(t, clip.Writes())
	assert.True(t, r.busy.Load(), "the running replacement keeps the flag")
}

func TestScriptsCoverTypedLength(t *testing.T) {
	for _, n := range []int{1, 4, 20} {
		taps := 0
		for _, s := range genericScript(n) {
			if s.kind == stepTap && s.code == scancode.Left {
				taps++
			}
		}
		assert.Equal(t, n+1, taps, "generic n=%d", n)

		taps = 0
		for _, s := range richScript(n) {
			if s.kind == stepTap && s.code == scancode.Backspace {
				taps++
			}
		}
		assert.Equal(t, n+1, taps, "rich n=%d", n)
	}
}
