package health

import (
	"context"

	"snipd/internal/engine"
)

// StatsSource reports engine state. *engine.Engine satisfies it.
type StatsSource interface {
	Stats() engine.Stats
}

// HookCheck reports the keyboard hook: unhealthy without a live session,
// degraded once the stall restart budget is spent.
func HookCheck(src StatsSource) Check {
	return func(ctx context.Context) CheckResult {
		s := src.Stats()
		details := map[string]interface{}{
			"session_id":     s.SessionID,
			"paused":         s.Paused,
			"restarts":       s.Restarts,
			"stall_attempts": s.StallAttempts,
			"dropped_events": s.DroppedEvents,
		}
		switch {
		case !s.Running:
			return CheckResult{Status: StatusUnhealthy, Message: "engine not running", Details: details}
		case !s.SessionActive:
			return CheckResult{Status: StatusUnhealthy, Message: "no hook session", Details: details}
		case !s.StallsLeft:
			return CheckResult{Status: StatusDegraded, Message: "stall restarts exhausted", Details: details}
		case s.Paused:
			return CheckResult{Status: StatusHealthy, Message: "hook attached, expansion paused", Details: details}
		}
		return CheckResult{Status: StatusHealthy, Message: "hook attached", Details: details}
	}
}

// IndexCheck reports the snippet index: degraded when it is empty.
func IndexCheck(src StatsSource) Check {
	return func(ctx context.Context) CheckResult {
		s := src.Stats()
		details := map[string]interface{}{
			"snippets":  s.Snippets,
			"sequences": s.Sequences,
		}
		if s.Sequences == 0 {
			return CheckResult{Status: StatusDegraded, Message: "no snippets loaded", Details: details}
		}
		return CheckResult{Status: StatusHealthy, Message: "snippets loaded", Details: details}
	}
}
