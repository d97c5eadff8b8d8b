package metrics

import "time"

// RecordExpansion records a replacement attempt.
func (m *Metrics) RecordExpansion(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExpansionsTotal.WithLabelValues(method, outcome).Inc()
	if d > 0 {
		m.ReplacementDuration.Observe(d.Seconds())
	}
}

// RecordMiss records a terminator that matched nothing.
func (m *Metrics) RecordMiss(reason string) {
	if m == nil {
		return
	}
	m.MatchMissesTotal.WithLabelValues(reason).Inc()
}

// RecordRestart records a hook restart.
func (m *Metrics) RecordRestart(reason string) {
	if m == nil {
		return
	}
	m.HookRestartsTotal.WithLabelValues(reason).Inc()
}

// RecordBufferReset records a buffer clear outside the terminator path.
func (m *Metrics) RecordBufferReset(reason string) {
	if m == nil {
		return
	}
	m.BufferResetsTotal.WithLabelValues(reason).Inc()
}

// RecordDroppedEvent records a key event lost to a full queue.
func (m *Metrics) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

// SetIndexSize publishes the size of the active index.
func (m *Metrics) SetIndexSize(snippets, sequences int) {
	if m == nil {
		return
	}
	m.IndexSnippets.Set(float64(snippets))
	m.IndexSequences.Set(float64(sequences))
}

// SetPaused publishes the pause state.
func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}
