//go:build windows

package focus

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
)

const maxClassName = 256

// System queries the foreground window through Win32.
type System struct{}

// NewSystem returns the platform window querier.
func NewSystem() *System {
	return &System{}
}

// ActiveWindow implements Querier.
func (System) ActiveWindow() (Info, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return Info{}, ErrNoWindow
	}

	info := Info{
		Title: windowText(hwnd),
		Class: className(hwnd),
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return info, fmt.Errorf("focus: window process id: %w", err)
	}
	info.PID = int(pid)
	if pid != 0 {
		info.Process = processName(pid)
	}
	return info, nil
}

// ForegroundPID returns only the foreground process id. It is cheaper than
// ActiveWindow and is called on every monitor tick.
func (System) ForegroundPID() int {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 0
	}
	return int(pid)
}

func windowText(hwnd windows.HWND) string {
	length, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), length+1)
	return windows.UTF16ToString(buf)
}

func className(hwnd windows.HWND) string {
	buf := make([]uint16, maxClassName)
	n, err := windows.GetClassName(hwnd, &buf[0], int32(len(buf)))
	if err != nil || n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func processName(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return filepath.Base(windows.UTF16ToString(buf[:size]))
}
