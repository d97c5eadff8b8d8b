//go:build !windows

package keystroke

import (
	"time"

	"snipd/internal/scancode"
)

// SystemHook is used on unsupported platforms.
type SystemHook struct {
	BaseHook
}

// NewSystemHook returns the platform hook.
func NewSystemHook() *SystemHook {
	return &SystemHook{}
}

// Start returns an error on unsupported platforms.
func (s *SystemHook) Start(func(KeyEvent)) error {
	return ErrNotAvailable
}

// Stop is a no-op on unsupported platforms.
func (s *SystemHook) Stop() error {
	return nil
}

// SystemInjector is used on unsupported platforms.
type SystemInjector struct{}

// NewSystemInjector returns the platform injector.
func NewSystemInjector() *SystemInjector {
	return &SystemInjector{}
}

func (SystemInjector) Press(scancode.Code, bool) error   { return ErrNotAvailable }
func (SystemInjector) Release(scancode.Code, bool) error { return ErrNotAvailable }
func (SystemInjector) Tap(scancode.Code, bool) error     { return ErrNotAvailable }

// SystemIdleTimer is used on unsupported platforms.
type SystemIdleTimer struct{}

// NewSystemIdleTimer returns the platform idle timer.
func NewSystemIdleTimer() *SystemIdleTimer {
	return &SystemIdleTimer{}
}

// IdleTime always reports unavailable.
func (SystemIdleTimer) IdleTime() (time.Duration, bool) {
	return 0, false
}
