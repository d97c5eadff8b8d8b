package engine

import (
	"fmt"
	"time"

	"snipd/internal/keystroke"
)

// Hook health thresholds.
const (
	StallTimeout     = 30 * time.Second
	StallIdleLimit   = 5 * time.Second
	MaxStallRestarts = 3
	RefreshCooldown  = 20 * time.Second
)

// RefreshPulses are the offsets, from a foreground switch, at which the
// buffer is cleared. The last pulse also restarts the hook.
var RefreshPulses = []time.Duration{
	500 * time.Millisecond,
	3 * time.Second,
	10 * time.Second,
	20 * time.Second,
}

// Restart reasons.
const (
	ReasonStall   = "stall"
	ReasonRefresh = "refresh"
	ReasonExit    = "exit"
)

// Sample is what the worker observed since the previous tick.
type Sample struct {
	// PID of the foreground process, zero when unknown.
	PID int
	// SawKey reports whether the current hook session delivered any event.
	SawKey bool
	// ProcessKey resolves the cooldown key of PID. Called only on a switch.
	ProcessKey func() string
	Idle       keystroke.IdleTimer
}

// Action tells the worker what to do after a tick.
type Action struct {
	ClearBuffer bool
	ClearReason string
	Restart     bool
	Reason      string
	Process     string
	Scheduled   bool
}

type refreshSchedule struct {
	pid       int
	key       string
	deadlines []time.Time
}

// Monitor decides when the hook must be restarted and when the buffer
// must be cleared. It holds no locks and is driven by the worker.
type Monitor struct {
	sessionStart time.Time
	lastPID      int
	attempts     int
	refreshed    map[string]time.Time
	schedule     *refreshSchedule
}

// NewMonitor creates a monitor for one engine run.
func NewMonitor() *Monitor {
	return &Monitor{refreshed: make(map[string]time.Time)}
}

// BeginSession records the start of a hook session and drops any pending
// refresh schedule.
func (m *Monitor) BeginSession(now time.Time, pid int) {
	m.sessionStart = now
	m.lastPID = pid
	m.schedule = nil
}

// Attempts returns the number of stall restarts in this engine run.
func (m *Monitor) Attempts() int {
	return m.attempts
}

// Exhausted reports whether stall restarts are no longer attempted.
func (m *Monitor) Exhausted() bool {
	return m.attempts >= MaxStallRestarts
}

// Pending returns the remaining pulse deadlines and the process they
// belong to. It returns nil when nothing is scheduled.
func (m *Monitor) Pending() (string, []time.Time) {
	if m.schedule == nil {
		return "", nil
	}
	out := make([]time.Time, len(m.schedule.deadlines))
	copy(out, m.schedule.deadlines)
	return m.schedule.key, out
}

// Tick evaluates one poll interval.
func (m *Monitor) Tick(now time.Time, s Sample) Action {
	if m.stalled(now, s) {
		m.attempts++
		return Action{ClearBuffer: true, ClearReason: "restart", Restart: true, Reason: ReasonStall}
	}

	var act Action
	if s.PID != 0 && s.PID != m.lastPID {
		m.lastPID = s.PID
		act.ClearBuffer = true
		act.ClearReason = "process_switch"

		key := processKey(s)
		act.Process = key
		if last, ok := m.refreshed[key]; !ok || now.Sub(last) >= RefreshCooldown {
			m.refreshed[key] = now
			deadlines := make([]time.Time, len(RefreshPulses))
			for i, d := range RefreshPulses {
				deadlines[i] = now.Add(d)
			}
			m.schedule = &refreshSchedule{pid: s.PID, key: key, deadlines: deadlines}
			act.Scheduled = true
		} else {
			m.schedule = nil
		}
		return act
	}

	sch := m.schedule
	if sch == nil || s.PID != sch.pid || now.Before(sch.deadlines[0]) {
		return act
	}
	sch.deadlines = sch.deadlines[1:]
	act.ClearBuffer = true
	act.ClearReason = "refresh_pulse"
	act.Process = sch.key
	if len(sch.deadlines) == 0 {
		m.refreshed[sch.key] = now
		m.schedule = nil
		act.Restart = true
		act.Reason = ReasonRefresh
	}
	return act
}

func (m *Monitor) stalled(now time.Time, s Sample) bool {
	if s.SawKey || m.attempts >= MaxStallRestarts {
		return false
	}
	if now.Sub(m.sessionStart) < StallTimeout {
		return false
	}
	if s.Idle == nil {
		return false
	}
	idle, ok := s.Idle.IdleTime()
	return ok && idle < StallIdleLimit
}

func processKey(s Sample) string {
	if s.ProcessKey != nil {
		if k := s.ProcessKey(); k != "" {
			return k
		}
	}
	return fmt.Sprintf("pid:%d", s.PID)
}
