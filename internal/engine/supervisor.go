package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"snipd/internal/focus"
	"snipd/internal/journal"
	"snipd/internal/keystroke"
)

// session is one Start/Stop cycle of the hook.
type session struct {
	id   string
	keys atomic.Int64
}

// run is the worker. It owns the buffer and the monitor, starts hook
// sessions, and restarts them on a stall, a refresh or a hook exit.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.sessionActive.Store(false)

	for ctx.Err() == nil {
		s, err := e.startSession()
		if err != nil {
			e.logger.Error("start keyboard hook", "error", err)
			if !sleepCtx(ctx, hookRetryDelay) {
				return
			}
			continue
		}

		reason, process := e.serve(ctx, s)
		e.endSession(s)
		if reason == "" {
			return
		}

		e.restarts.Add(1)
		e.metrics.RecordRestart(reason)
		e.journalRestart(journal.Restart{
			Timestamp: e.opts.Now(),
			SessionID: s.id,
			Reason:    reason,
			Process:   process,
		})
		e.logger.Info("restarting keyboard hook", "reason", reason, "session", s.id, "process", process)
	}
}

func (e *Engine) startSession() (*session, error) {
	s := &session{id: uuid.NewString()}
	e.buffer.Clear()

	if err := e.opts.Hook.Start(func(ev keystroke.KeyEvent) { e.sink(s, ev) }); err != nil {
		return nil, err
	}
	e.monitor.BeginSession(e.opts.Now(), e.foregroundPID())
	e.sessionID.Store(s.id)
	e.sessionActive.Store(true)
	e.logger.Debug("keyboard hook session started", "session", s.id)
	return s, nil
}

func (e *Engine) endSession(s *session) {
	e.sessionActive.Store(false)
	if err := e.opts.Hook.Stop(); err != nil {
		e.logger.Warn("stop keyboard hook", "session", s.id, "error", err)
	}
	e.buffer.Clear()
drain:
	for {
		select {
		case <-e.events:
		default:
			break drain
		}
	}
}

// sink runs on the hook thread. It must not block.
func (e *Engine) sink(s *session, ev keystroke.KeyEvent) {
	s.keys.Add(1)
	if e.paused.Load() || e.busy.Load() {
		return
	}
	if e.firstKey.CompareAndSwap(false, true) {
		e.logger.Info("first key event", "kind", ev.Kind.String())
	}
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
		e.metrics.RecordDroppedEvent()
	}
}

// serve processes one session. It returns the restart reason, or "" when
// the worker must exit.
func (e *Engine) serve(ctx context.Context, s *session) (reason, process string) {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	hookDone := e.opts.Hook.Done()

	for {
		select {
		case <-ctx.Done():
			return "", ""

		case <-hookDone:
			e.logger.Warn("keyboard hook ended", "session", s.id)
			return ReasonExit, ""

		case ev := <-e.events:
			if e.paused.Load() || e.busy.Load() {
				continue
			}
			e.recover("key", func() {
				if m, ok := e.handleKey(ev); ok {
					e.schedule(m)
				}
			})

		case <-ticker.C:
			act := e.tick(s)
			if act.ClearBuffer {
				e.resetBuffer(act.ClearReason)
			}
			if act.Scheduled {
				e.logger.Debug("refresh scheduled", "process", act.Process)
			}
			if act.Restart {
				return act.Reason, act.Process
			}
		}
	}
}

func (e *Engine) tick(s *session) Action {
	pid := e.foregroundPID()
	act := e.monitor.Tick(e.opts.Now(), Sample{
		PID:    pid,
		SawKey: s.keys.Load() > 0,
		ProcessKey: func() string {
			return e.processKey(pid)
		},
		Idle: e.opts.Idle,
	})
	e.stallAttempts.Store(int32(e.monitor.Attempts()))
	if act.Restart && act.Reason == ReasonStall {
		e.logger.Warn("keyboard hook stalled",
			"session", s.id,
			"attempt", e.monitor.Attempts(),
			"max", MaxStallRestarts,
		)
	}
	return act
}

func (e *Engine) foregroundPID() int {
	if e.focus == nil {
		return 0
	}
	return e.focus.ForegroundPID()
}

func (e *Engine) processKey(pid int) string {
	info := focus.Info{PID: pid}
	if e.focus != nil {
		if w, err := e.focus.ActiveWindow(); err == nil && w.PID == pid {
			info = w
		}
	}
	return info.ProcessKey()
}

func (e *Engine) journalRestart(r journal.Restart) {
	if e.journal != nil {
		e.journal.RecordRestart(r)
	}
}

// schedule runs the replacement for m after the replace delay.
func (e *Engine) schedule(m Match) {
	e.replacements.Add(1)
	time.AfterFunc(e.opts.ReplaceDelay, func() {
		defer e.replacements.Done()
		e.recover("replace", func() { e.expand(m) })
	})
}

func (e *Engine) expand(m Match) {
	start := e.opts.Now()
	res, ok := e.replacer.replace(m)
	if !ok {
		e.logger.Debug("replacement in progress, dropped", "abbreviation", m.Entry.Abbreviation)
		return
	}
	elapsed := e.opts.Now().Sub(start)

	e.expansions.Add(1)
	if res.Outcome != OutcomeOK {
		e.failures.Add(1)
	}
	e.metrics.RecordExpansion(res.Method, res.Outcome, elapsed)
	if e.journal != nil {
		e.journal.RecordExpansion(journal.Expansion{
			Timestamp:    start,
			Abbreviation: m.Entry.Abbreviation,
			Process:      res.Process,
			Method:       res.Method,
			Outcome:      res.Outcome,
			Duration:     elapsed,
		})
	}
}

func (e *Engine) recover(stage string, fn func()) {
	if e.opts.Crash != nil {
		e.opts.Crash.RecoverWithContext(map[string]interface{}{"stage": stage}, fn)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic recovered", "stage", stage, "panic", r)
		}
	}()
	fn()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
