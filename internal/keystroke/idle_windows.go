//go:build windows

package keystroke

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	Size uint32
	Time uint32
}

// SystemIdleTimer reads the system-wide idle time.
type SystemIdleTimer struct{}

// NewSystemIdleTimer returns the platform idle timer.
func NewSystemIdleTimer() *SystemIdleTimer {
	return &SystemIdleTimer{}
}

// IdleTime implements IdleTimer.
func (SystemIdleTimer) IdleTime() (time.Duration, bool) {
	info := lastInputInfo{Size: uint32(unsafe.Sizeof(lastInputInfo{}))}
	if r, _, _ := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info))); r == 0 {
		return 0, false
	}
	now, _, _ := procGetTickCount.Call()
	// Both counters wrap every 49.7 days; uint32 subtraction handles it.
	return time.Duration(uint32(now)-info.Time) * time.Millisecond, true
}
