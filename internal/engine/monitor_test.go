package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleFunc func() (time.Duration, bool)

func (f idleFunc) IdleTime() (time.Duration, bool) { return f() }

func idleFor(d time.Duration) idleFunc {
	return func() (time.Duration, bool) { return d, true }
}

func keyFor(name string) func() string {
	return func() string { return name }
}

func TestMonitorStall(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.BeginSession(t0, 100)

	act := m.Tick(t0.Add(29*time.Second), Sample{PID: 100, Idle: idleFor(time.Second)})
	assert.False(t, act.Restart, "no stall before the timeout")

	act = m.Tick(t0.Add(31*time.Second), Sample{PID: 100, Idle: idleFor(1000 * time.Millisecond)})
	require.True(t, act.Restart)
	assert.Equal(t, ReasonStall, act.Reason)
	assert.True(t, act.ClearBuffer)
	assert.Equal(t, 1, m.Attempts())

	start := t0.Add(31 * time.Second)
	for i := 2; i <= MaxStallRestarts; i++ {
		m.BeginSession(start, 100)
		start = start.Add(31 * time.Second)
		act = m.Tick(start, Sample{PID: 100, Idle: idleFor(time.Second)})
		require.True(t, act.Restart, "stall %d", i)
		assert.Equal(t, i, m.Attempts())
	}
	assert.True(t, m.Exhausted())

	m.BeginSession(start, 100)
	act = m.Tick(start.Add(31*time.Second), Sample{PID: 100, Idle: idleFor(time.Second)})
	assert.False(t, act.Restart, "fourth stall is ignored")
	assert.Equal(t, MaxStallRestarts, m.Attempts())
}

func TestMonitorNoStall(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	later := t0.Add(time.Minute)

	tests := []struct {
		name string
		s    Sample
	}{
		{"key seen", Sample{PID: 1, SawKey: true, Idle: idleFor(time.Second)}},
		{"user idle", Sample{PID: 1, Idle: idleFor(5 * time.Second)}},
		{"idle unavailable", Sample{PID: 1, Idle: idleFunc(func() (time.Duration, bool) { return 0, false })}},
		{"no idle timer", Sample{PID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			m.BeginSession(t0, 1)
			act := m.Tick(later, tt.s)
			assert.False(t, act.Restart)
			assert.Equal(t, 0, m.Attempts())
		})
	}
}

func TestMonitorProcessSwitchCooldown(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.BeginSession(t0, 100)

	act := m.Tick(t0.Add(time.Second), Sample{PID: 200, SawKey: true, ProcessKey: keyFor("chrome.exe")})
	assert.True(t, act.ClearBuffer)
	assert.Equal(t, "process_switch", act.ClearReason)
	assert.True(t, act.Scheduled)
	assert.Equal(t, "chrome.exe", act.Process)

	act = m.Tick(t0.Add(2*time.Second), Sample{PID: 300, SawKey: true, ProcessKey: keyFor("notepad.exe")})
	assert.True(t, act.Scheduled)
	key, pending := m.Pending()
	assert.Equal(t, "notepad.exe", key)
	assert.Len(t, pending, len(RefreshPulses))

	// Back to chrome within the cooldown: no new schedule, pending dropped.
	act = m.Tick(t0.Add(5*time.Second), Sample{PID: 200, SawKey: true, ProcessKey: keyFor("chrome.exe")})
	assert.True(t, act.ClearBuffer)
	assert.False(t, act.Scheduled)
	key, pending = m.Pending()
	assert.Empty(t, key)
	assert.Nil(t, pending)

	// After the cooldown a switch schedules again.
	m.Tick(t0.Add(30*time.Second), Sample{PID: 300, SawKey: true, ProcessKey: keyFor("notepad.exe")})
	act = m.Tick(t0.Add(31*time.Second), Sample{PID: 200, SawKey: true, ProcessKey: keyFor("chrome.exe")})
	assert.True(t, act.Scheduled)
}

func TestMonitorRefreshPulses(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.BeginSession(t0, 100)

	sample := Sample{PID: 200, SawKey: true, ProcessKey: keyFor("chrome.exe")}
	act := m.Tick(t0, sample)
	require.True(t, act.Scheduled)

	act = m.Tick(t0.Add(400*time.Millisecond), sample)
	assert.False(t, act.ClearBuffer, "before the first pulse")

	act = m.Tick(t0.Add(600*time.Millisecond), Sample{PID: 0, SawKey: true})
	assert.False(t, act.ClearBuffer, "pulses wait while the process is not known to be foreground")

	act = m.Tick(t0.Add(700*time.Millisecond), sample)
	assert.True(t, act.ClearBuffer)
	assert.Equal(t, "refresh_pulse", act.ClearReason)
	assert.False(t, act.Restart)

	act = m.Tick(t0.Add(3*time.Second), sample)
	assert.True(t, act.ClearBuffer)
	act = m.Tick(t0.Add(10*time.Second), sample)
	assert.True(t, act.ClearBuffer)
	assert.False(t, act.Restart)

	act = m.Tick(t0.Add(20*time.Second), sample)
	assert.True(t, act.ClearBuffer)
	assert.True(t, act.Restart)
	assert.Equal(t, ReasonRefresh, act.Reason)
	assert.Equal(t, "chrome.exe", act.Process)

	_, pending := m.Pending()
	assert.Nil(t, pending)

	// The final pulse stamps the cooldown.
	m.BeginSession(t0.Add(20*time.Second), 200)
	m.Tick(t0.Add(25*time.Second), Sample{PID: 100, SawKey: true, ProcessKey: keyFor("explorer.exe")})
	act = m.Tick(t0.Add(30*time.Second), sample)
	assert.False(t, act.Scheduled)
}

func TestMonitorNewSessionDropsSchedule(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.BeginSession(t0, 100)

	sample := Sample{PID: 200, SawKey: true, ProcessKey: keyFor("chrome.exe")}
	require.True(t, m.Tick(t0, sample).Scheduled)
	_, pending := m.Pending()
	require.NotNil(t, pending)

	// A hook restart for another reason starts a fresh session.
	m.BeginSession(t0.Add(time.Second), 200)
	_, pending = m.Pending()
	assert.Nil(t, pending)

	act := m.Tick(t0.Add(3*time.Second), sample)
	assert.False(t, act.ClearBuffer)
	assert.False(t, act.Restart)
}

func TestMonitorProcessKeyFallback(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.BeginSession(t0, 1)

	act := m.Tick(t0, Sample{PID: 4242, SawKey: true, ProcessKey: keyFor("")})
	assert.Equal(t, "pid:4242", act.Process)
}
