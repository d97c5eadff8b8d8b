package keystroke

import (
	"fmt"
	"strings"
	"sync"

	"snipd/internal/scancode"
)

// Op is one injected key action.
type Op struct {
	Action   string // "press", "release" or "tap"
	Code     scancode.Code
	Extended bool
}

func (o Op) String() string {
	s := fmt.Sprintf("%s:%02X", o.Action, uint16(o.Code))
	if o.Extended {
		s += "e"
	}
	return s
}

// RecordingInjector records injected keys instead of sending them.
type RecordingInjector struct {
	mu  sync.Mutex
	ops []Op

	// FailOn, when set, makes matching calls return ErrPartialSend. Failed
	// calls are not recorded.
	FailOn func(Op) bool
}

// NewRecordingInjector creates an injector for testing.
func NewRecordingInjector() *RecordingInjector {
	return &RecordingInjector{}
}

func (r *RecordingInjector) record(action string, code scancode.Code, extended bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op := Op{Action: action, Code: code, Extended: extended}
	if r.FailOn != nil && r.FailOn(op) {
		return fmt.Errorf("%w: 0 of 1 events", ErrPartialSend)
	}
	r.ops = append(r.ops, op)
	return nil
}

// Press implements Injector.
func (r *RecordingInjector) Press(code scancode.Code, extended bool) error {
	return r.record("press", code, extended)
}

// Release implements Injector.
func (r *RecordingInjector) Release(code scancode.Code, extended bool) error {
	return r.record("release", code, extended)
}

// Tap implements Injector.
func (r *RecordingInjector) Tap(code scancode.Code, extended bool) error {
	return r.record("tap", code, extended)
}

// Ops returns the recorded actions.
func (r *RecordingInjector) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Script renders the recorded actions as space-separated Op strings.
func (r *RecordingInjector) Script() string {
	ops := r.Ops()
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}
