// Package engine is the text-expansion core.
//
// A keyboard hook feeds key events to a single worker goroutine that owns
// the input buffer, the hook session and the health monitor. When the
// terminator key completes a known abbreviation, the worker schedules a
// one-shot replacement that erases what was typed and pastes the snippet
// text through the clipboard.
//
// Two flags are shared with the hook thread: paused and busy. While either
// is set, key events are ignored without touching the buffer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"snipd/internal/focus"
	"snipd/internal/index"
	"snipd/internal/journal"
	"snipd/internal/keystroke"
	"snipd/internal/metrics"
	"snipd/internal/snippets"
)

// Defaults for Options.
const (
	DefaultReplaceDelay = 50 * time.Millisecond
	DefaultPollInterval = 250 * time.Millisecond
	DefaultEventQueue   = 256
	hookRetryDelay      = time.Second
)

// ErrNotRunning is returned by Stop when the engine was never started.
var ErrNotRunning = errors.New("engine not running")

// Foreground reports on the window that has keyboard focus.
type Foreground interface {
	focus.Querier
	ForegroundPID() int
}

// Journal receives expansion and restart records. *journal.Journal
// satisfies it.
type Journal interface {
	RecordExpansion(journal.Expansion)
	RecordRestart(journal.Restart)
}

// PanicHandler runs fn and recovers a panic. *logging.CrashHandler
// satisfies it.
type PanicHandler interface {
	RecoverWithContext(contextInfo map[string]interface{}, fn func())
}

// Options configures an Engine. Hook, Clipboard and Injector are required.
type Options struct {
	Hook      keystroke.Hook
	Focus     Foreground
	Clipboard keystroke.Clipboard
	Injector  keystroke.Injector
	Idle      keystroke.IdleTimer

	Logger  *slog.Logger
	Journal Journal
	Metrics *metrics.Metrics
	Crash   PanicHandler

	ReplaceDelay   time.Duration
	PollInterval   time.Duration
	RichTextHosts  []string
	ValidateSchema bool

	// Sleep pauses between injected keys. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Running       bool   `json:"running"`
	Paused        bool   `json:"paused"`
	Replacing     bool   `json:"replacing"`
	SessionActive bool   `json:"session_active"`
	SessionID     string `json:"session_id,omitempty"`
	Snippets      int    `json:"snippets"`
	Sequences     int    `json:"sequences"`
	Expansions    int64  `json:"expansions"`
	Failures      int64  `json:"failures"`
	Restarts      int64  `json:"restarts"`
	StallAttempts int    `json:"stall_attempts"`
	StallsLeft    bool   `json:"stalls_left"`
	DroppedEvents int64  `json:"dropped_events"`
}

// Engine wires the hook, the index and the replacement procedure.
type Engine struct {
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	journal  Journal
	focus    Foreground
	replacer *replacer

	index  atomic.Pointer[index.Index]
	paused atomic.Bool
	busy   atomic.Bool

	// Owned by the worker goroutine.
	buffer  *Buffer
	monitor *Monitor

	events chan keystroke.KeyEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	replacements sync.WaitGroup

	sessionID     atomic.Value // string
	sessionActive atomic.Bool
	firstKey      atomic.Bool
	stallAttempts atomic.Int32
	expansions    atomic.Int64
	failures      atomic.Int64
	restarts      atomic.Int64
	dropped       atomic.Int64
}

// New creates an engine with an empty index.
func New(opts Options) (*Engine, error) {
	if opts.Hook == nil {
		return nil, errors.New("engine: hook is required")
	}
	if opts.Clipboard == nil {
		return nil, errors.New("engine: clipboard is required")
	}
	if opts.Injector == nil {
		return nil, errors.New("engine: injector is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReplaceDelay <= 0 {
		opts.ReplaceDelay = DefaultReplaceDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RichTextHosts == nil {
		opts.RichTextHosts = DefaultRichTextHosts
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		opts:    opts,
		logger:  opts.Logger.With("component", "engine"),
		metrics: opts.Metrics,
		journal: opts.Journal,
		focus:   opts.Focus,
		buffer:  NewBuffer(BufferCapacity),
		monitor: NewMonitor(),
		events:  make(chan keystroke.KeyEvent, DefaultEventQueue),
	}
	var q focus.Querier
	if opts.Focus != nil {
		q = opts.Focus
	}
	e.replacer = &replacer{
		clipboard: opts.Clipboard,
		injector:  opts.Injector,
		focus:     q,
		sleep:     opts.Sleep,
		richHosts: newRichHosts(opts.RichTextHosts),
		busy:      &e.busy,
		logger:    e.logger.With("stage", "replace"),
	}
	e.index.Store(index.Empty())
	e.sessionID.Store("")
	return e, nil
}

// Start launches the worker. The worker runs until Stop is called or ctx
// is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return keystroke.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.monitor = NewMonitor()
	e.stallAttempts.Store(0)
	e.firstKey.Store(false)

	go e.run(ctx, e.done)
	e.logger.Info("engine started")
	return nil
}

// Stop cancels the worker and waits for it to tear down the hook. A
// replacement already scheduled still runs.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	e.logger.Info("engine stopped")
	return nil
}

// Done is closed when the worker exits.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.done
}

// Wait blocks until every scheduled replacement has finished.
func (e *Engine) Wait() {
	e.replacements.Wait()
}

// Pause makes the engine ignore key events.
func (e *Engine) Pause() {
	e.setPaused(true)
}

// Resume undoes Pause.
func (e *Engine) Resume() {
	e.setPaused(false)
}

// TogglePause flips the paused flag and returns the new state.
func (e *Engine) TogglePause() bool {
	for {
		old := e.paused.Load()
		if e.paused.CompareAndSwap(old, !old) {
			e.logPaused(!old)
			return !old
		}
	}
}

// Paused reports whether key events are ignored.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

func (e *Engine) setPaused(v bool) {
	if e.paused.Swap(v) != v {
		e.logPaused(v)
	}
}

func (e *Engine) logPaused(v bool) {
	e.metrics.SetPaused(v)
	if v {
		e.logger.Info("listener paused")
	} else {
		e.logger.Info("listener resumed")
	}
}

// Reload parses payload and swaps in a new index. On a parse error the
// index is emptied and the error returned; the engine keeps running.
func (e *Engine) Reload(payload []byte, format snippets.Format) error {
	if e.opts.ValidateSchema {
		if err := snippets.Validate(payload, format); err != nil {
			e.logger.Warn("snippets do not match schema", "error", err)
		}
	}

	doc, err := snippets.Parse(payload, format)
	if err != nil {
		e.setIndex(index.Empty())
		e.logger.Error("load snippets", "error", err)
		return fmt.Errorf("reload snippets: %w", err)
	}
	for _, w := range doc.Warnings {
		e.logger.Warn("snippet entry ignored", "detail", w)
	}

	ix := index.Build(doc.Flatten(), e.opts.Logger)
	e.setIndex(ix)
	e.logger.Info("snippets loaded",
		"snippets", ix.Len(),
		"sequences", ix.Sequences(),
		"skipped", len(ix.Skipped()),
		"legacy", doc.Legacy,
	)
	return nil
}

// ReloadFile reads the snippets file at path and reloads it. A missing
// file is not an error: it yields an empty index.
func (e *Engine) ReloadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		e.setIndex(index.Empty())
		e.logger.Warn("snippets file not found", "path", path)
		return nil
	}
	if err != nil {
		e.setIndex(index.Empty())
		e.logger.Error("read snippets file", "path", path, "error", err)
		return fmt.Errorf("reload snippets: %w", err)
	}
	return e.Reload(data, snippets.FormatFromPath(path))
}

func (e *Engine) setIndex(ix *index.Index) {
	e.index.Store(ix)
	e.metrics.SetIndexSize(ix.Len(), ix.Sequences())
}

// Index returns the index currently used for matching.
func (e *Engine) Index() *index.Index {
	return e.index.Load()
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	ix := e.index.Load()
	attempts := int(e.stallAttempts.Load())
	return Stats{
		Running:       running,
		Paused:        e.paused.Load(),
		Replacing:     e.busy.Load(),
		SessionActive: e.sessionActive.Load(),
		SessionID:     e.sessionID.Load().(string),
		Snippets:      ix.Len(),
		Sequences:     ix.Sequences(),
		Expansions:    e.expansions.Load(),
		Failures:      e.failures.Load(),
		Restarts:      e.restarts.Load(),
		StallAttempts: attempts,
		StallsLeft:    attempts < MaxStallRestarts,
		DroppedEvents: e.dropped.Load(),
	}
}
