package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipd/internal/focus"
	"snipd/internal/journal"
	"snipd/internal/keystroke"
	"snipd/internal/metrics"
	"snipd/internal/scancode"
	"snipd/internal/snippets"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeForeground struct {
	mu   sync.Mutex
	info focus.Info
	err  error
}

func (f *fakeForeground) ActiveWindow() (focus.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.err
}

func (f *fakeForeground) ForegroundPID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info.PID
}

func (f *fakeForeground) set(info focus.Info) {
	f.mu.Lock()
	f.info = info
	f.mu.Unlock()
}

type memJournal struct {
	mu         sync.Mutex
	expansions []journal.Expansion
	restarts   []journal.Restart
}

func (j *memJournal) RecordExpansion(e journal.Expansion) {
	j.mu.Lock()
	j.expansions = append(j.expansions, e)
	j.mu.Unlock()
}

func (j *memJournal) RecordRestart(r journal.Restart) {
	j.mu.Lock()
	j.restarts = append(j.restarts, r)
	j.mu.Unlock()
}

func (j *memJournal) Expansions() []journal.Expansion {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Expansion(nil), j.expansions...)
}

func (j *memJournal) Restarts() []journal.Restart {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Restart(nil), j.restarts...)
}

type harness struct {
	engine    *Engine
	hook      *keystroke.SimulatedHook
	injector  *keystroke.RecordingInjector
	clipboard *keystroke.MemoryClipboard
	window    *fakeForeground
	journal   *memJournal
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T, payload string, tweak func(*Options)) *harness {
	t.Helper()
	h := &harness{
		hook:      keystroke.NewSimulated(),
		injector:  keystroke.NewRecordingInjector(),
		clipboard: keystroke.NewMemoryClipboard("saved"),
		window:    &fakeForeground{info: focus.Info{Title: "Untitled - Notepad", Class: "Notepad", Process: "notepad.exe", PID: 100}},
		journal:   &memJournal{},
		metrics:   metrics.New(),
	}
	opts := Options{
		Hook:         h.hook,
		Focus:        h.window,
		Clipboard:    h.clipboard,
		Injector:     h.injector,
		Logger:       quietLogger(),
		Journal:      h.journal,
		Metrics:      h.metrics,
		ReplaceDelay: time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Sleep:        func(time.Duration) {},
	}
	if tweak != nil {
		tweak(&opts)
	}

	e, err := New(opts)
	require.NoError(t, err)
	h.engine = e
	if payload != "" {
		require.NoError(t, e.Reload([]byte(payload), snippets.FormatJSON))
	}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(func() {
		h.engine.Stop()
		h.engine.Wait()
	})
	require.Eventually(t, h.hook.IsRunning, waitFor, tick)
}

func bufferResets(m *metrics.Metrics, reason string) float64 {
	return testutil.ToFloat64(m.BufferResetsTotal.WithLabelValues(reason))
}

func (h *harness) expansions() int {
	return len(h.journal.Expansions())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Hook: keystroke.NewSimulated(), Clipboard: keystroke.NewMemoryClipboard("")})
	assert.Error(t, err)
}

func TestFlatExpansion(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	h.hook.Type(scancode.Latin, ".brb ")

	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
	h.engine.Wait()

	exp := h.journal.Expansions()[0]
	assert.Equal(t, ".brb", exp.Abbreviation)
	assert.Equal(t, MethodGeneric, exp.Method)
	assert.Equal(t, OutcomeOK, exp.Outcome)
	assert.Equal(t, "notepad.exe", exp.Process)

	assert.Equal(t, genericBRB, h.injector.Script())
	assert.Equal(t, []string{"be right back", "saved"}, h.clipboard.Writes())
	assert.EqualValues(t, 1, h.engine.Stats().Expansions)
}

func TestCyrillicLayoutExpansion(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	// The same physical keys typed under the Cyrillic layout: the dot key
	// produces "ю" and b, r, b produce "и", "к", "и".
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindChar, ScanCode: scancode.Dot, Char: 'ю', HasChar: true})
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindChar, ScanCode: 0x30, Char: 'и', HasChar: true})
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindChar, ScanCode: 0x13, Char: 'к', HasChar: true})
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindChar, ScanCode: 0x30, Char: 'и', HasChar: true})
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindSpace, ScanCode: scancode.Space, Char: ' ', HasChar: true})

	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
}

func TestRichHostExpansion(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.window.set(focus.Info{Title: "Document1 - Word", Class: "OpusApp", Process: "WINWORD.EXE", PID: 100})
	h.start(t)

	h.hook.Type(scancode.Latin, ".brb ")

	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
	h.engine.Wait()
	assert.Equal(t, MethodRich, h.journal.Expansions()[0].Method)
	assert.Equal(t, richBRB, h.injector.Script())
}

func TestWindowFilteredExpansion(t *testing.T) {
	h := newHarness(t, editorsPayload, nil)
	h.start(t)

	h.hook.Type(scancode.Latin, ".sig ")
	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
	h.engine.Wait()
	assert.Equal(t, "notepad signature", h.clipboard.Writes()[0])

	h.window.set(focus.Info{Title: "Document - WordPad", Class: "WordPadClass", Process: "wordpad.exe", PID: 100})
	h.hook.Type(scancode.Latin, ".sig ")
	require.Eventually(t, func() bool { return h.expansions() == 2 }, waitFor, tick)
	h.engine.Wait()
	assert.Equal(t, "wordpad signature", h.clipboard.Writes()[2])
}

func TestBackspaceAndInvalidKeys(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	// ".brx", backspace, "b": the buffer holds .brb again.
	h.hook.Type(scancode.Latin, ".brx")
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindBackspace, ScanCode: scancode.Backspace})
	h.hook.Type(scancode.Latin, "b ")
	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
	h.engine.Wait()

	// Shift alone does not touch the buffer.
	h.hook.Type(scancode.Latin, ".b")
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindModifier, ScanCode: scancode.Shift})
	h.hook.Type(scancode.Latin, "rb ")
	require.Eventually(t, func() bool { return h.expansions() == 2 }, waitFor, tick)
	h.engine.Wait()

	// An arrow key in the middle invalidates the buffer.
	h.hook.Type(scancode.Latin, ".b")
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindOther, ScanCode: scancode.Left})
	h.hook.Type(scancode.Latin, "rb ")

	// So does a control character.
	h.hook.Type(scancode.Latin, ".brb")
	h.hook.Send(keystroke.KeyEvent{Kind: keystroke.KindChar, ScanCode: 0x1E, Char: 0x01, HasChar: true})
	h.hook.Type(scancode.Latin, " ")

	assert.Never(t, func() bool { return h.expansions() > 2 }, 200*time.Millisecond, tick)
}

func TestPausedEventsAreIgnored(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	h.engine.Pause()
	assert.True(t, h.engine.Paused())
	h.hook.Type(scancode.Latin, ".brb ")
	h.hook.Type(scancode.Latin, ".brb")
	h.engine.Resume()
	h.hook.Type(scancode.Latin, " ")

	assert.Never(t, func() bool { return h.expansions() > 0 }, 200*time.Millisecond, tick)

	assert.True(t, h.engine.TogglePause())
	assert.False(t, h.engine.TogglePause())
	h.hook.Type(scancode.Latin, ".brb ")
	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
}

func TestBusyEventsAreIgnored(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	h.engine.busy.Store(true)
	h.hook.Type(scancode.Latin, ".brb")
	h.engine.busy.Store(false)
	h.hook.Type(scancode.Latin, " ")

	assert.Never(t, func() bool { return h.expansions() > 0 }, 200*time.Millisecond, tick)
}

func TestClipboardFailureAborts(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.clipboard.WriteErr = errors.New("clipboard locked")
	h.start(t)

	h.hook.Type(scancode.Latin, ".brb ")
	require.Eventually(t, func() bool { return h.expansions() == 1 }, waitFor, tick)
	h.engine.Wait()

	assert.Equal(t, OutcomeClipboardError, h.journal.Expansions()[0].Outcome)
	assert.Empty(t, h.injector.Ops())
	assert.EqualValues(t, 1, h.engine.Stats().Failures)
}

func TestHookExitRestarts(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)

	require.Eventually(t, func() bool { return h.engine.Stats().SessionActive }, waitFor, tick)
	first := h.engine.Stats().SessionID
	require.NotEmpty(t, first)

	h.hook.Detach()
	require.Eventually(t, func() bool { return h.hook.Starts() == 2 && h.hook.IsRunning() }, waitFor, tick)
	require.Eventually(t, func() bool { return len(h.journal.Restarts()) == 1 }, waitFor, tick)

	r := h.journal.Restarts()[0]
	assert.Equal(t, ReasonExit, r.Reason)
	assert.Equal(t, first, r.SessionID)
	assert.Eventually(t, func() bool {
		id := h.engine.Stats().SessionID
		return id != "" && id != first
	}, waitFor, tick)
}

func TestHookStartFailureRetries(t *testing.T) {
	h := newHarness(t, "", nil)
	h.hook.FailNextStart(errors.New("SetWindowsHookEx failed"))

	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(func() { h.engine.Stop() })

	assert.False(t, h.hook.IsRunning())
	require.Eventually(t, h.hook.IsRunning, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, h.hook.Starts())
}

func TestProcessSwitchClearsBuffer(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	h.start(t)

	h.hook.Type(scancode.Latin, ".br")
	time.Sleep(50 * time.Millisecond)
	h.window.set(focus.Info{Title: "Inbox", Process: "chrome.exe", PID: 200})
	require.Eventually(t, func() bool {
		return h.engine.Stats().Restarts == 0 && bufferResets(h.metrics, "process_switch") == 1
	}, waitFor, tick)

	h.hook.Type(scancode.Latin, "b ")
	assert.Never(t, func() bool { return h.expansions() > 0 }, 100*time.Millisecond, tick)
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, "", nil)
	assert.ErrorIs(t, h.engine.Stop(), ErrNotRunning)

	h.start(t)
	assert.ErrorIs(t, h.engine.Start(context.Background()), keystroke.ErrAlreadyRunning)
	assert.True(t, h.engine.Stats().Running)

	require.NoError(t, h.engine.Stop())
	assert.False(t, h.hook.IsRunning())
	assert.False(t, h.engine.Stats().SessionActive)

	select {
	case <-h.engine.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}

	// A stopped engine can be started again.
	require.NoError(t, h.engine.Start(context.Background()))
	require.Eventually(t, h.hook.IsRunning, waitFor, tick)
}

func TestFirstKeyLoggedEachRun(t *testing.T) {
	h := newHarness(t, "", nil)
	h.start(t)

	h.hook.Type(scancode.Latin, "a")
	require.Eventually(t, h.engine.firstKey.Load, waitFor, tick)

	require.NoError(t, h.engine.Stop())
	h.engine.Wait()
	require.NoError(t, h.engine.Start(context.Background()))
	assert.False(t, h.engine.firstKey.Load())

	require.Eventually(t, h.hook.IsRunning, waitFor, tick)
	h.hook.Type(scancode.Latin, "a")
	assert.Eventually(t, h.engine.firstKey.Load, waitFor, tick)
}

func TestContextCancelStopsWorker(t *testing.T) {
	h := newHarness(t, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.engine.Start(ctx))
	require.Eventually(t, h.hook.IsRunning, waitFor, tick)

	cancel()
	select {
	case <-h.engine.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not exit")
	}
	assert.False(t, h.hook.IsRunning())
	h.engine.Stop()
}

func TestReloadIdempotent(t *testing.T) {
	payload := `{
  "categories": {
    "General": {"snippets": {".brb": "be right back", ".ty": "thank you"}},
    "Cyr": {"snippets": {".ад": "адрес"}}
  }
}`
	h := newHarness(t, payload, nil)
	first := h.engine.Index()

	require.NoError(t, h.engine.Reload([]byte(payload), snippets.FormatJSON))
	second := h.engine.Index()

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Sequences(), second.Sequences())
	for i, e := range first.Entries() {
		assert.Equal(t, e.Abbreviation, second.Entries()[i].Abbreviation)
		assert.Equal(t, e.Sequences, second.Entries()[i].Sequences)
	}
}

func TestReloadErrorEmptiesIndex(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back"}`, nil)
	require.Equal(t, 1, h.engine.Index().Len())

	err := h.engine.Reload([]byte(`{".brb": `), snippets.FormatJSON)
	assert.Error(t, err)
	assert.Equal(t, 0, h.engine.Index().Len())

	err = h.engine.Reload([]byte(`["not", "an", "object"]`), snippets.FormatJSON)
	assert.ErrorIs(t, err, snippets.ErrNotObject)
}

func TestReloadFile(t *testing.T) {
	h := newHarness(t, "", func(o *Options) { o.ValidateSchema = true })
	dir := t.TempDir()

	path := filepath.Join(dir, "snippets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  Mail:\n    snippets:\n      .ty: thank you\n"), 0o600))
	require.NoError(t, h.engine.ReloadFile(path))
	assert.Equal(t, 1, h.engine.Index().Len())

	require.NoError(t, h.engine.ReloadFile(filepath.Join(dir, "missing.json")))
	assert.Equal(t, 0, h.engine.Index().Len())
}

func TestStatsReflectIndex(t *testing.T) {
	h := newHarness(t, `{".brb": "be right back", "/x": "slash"}`, nil)
	s := h.engine.Stats()
	assert.False(t, s.Running)
	assert.Equal(t, 2, s.Snippets)
	assert.True(t, s.StallsLeft)
	assert.Equal(t, 0, s.StallAttempts)
}
