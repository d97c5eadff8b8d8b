//go:build windows

package keystroke

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/sys/windows"

	"snipd/internal/scancode"
)

// ============================================================================
// Low-level keyboard hook
// ============================================================================
//
// WH_KEYBOARD_LL callbacks are delivered to the thread that installed the
// hook, and only while that thread pumps messages. Each session therefore
// owns a locked OS thread running GetMessageW until Stop posts WM_QUIT.
//
// The OS may silently drop a hook whose callback is slow, so the callback
// only decodes the event and hands it to the sink.

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procMapVirtualKeyW      = user32.NewProc("MapVirtualKeyW")
	procToUnicodeEx         = user32.NewProc("ToUnicodeEx")
	procGetKeyboardLayout   = user32.NewProc("GetKeyboardLayout")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procGetKeyState         = user32.NewProc("GetKeyState")
)

const (
	whKeyboardLL  = 13
	hcAction      = 0
	wmKeyDown     = 0x0100
	wmSysKeyDown  = 0x0104
	wmQuit        = 0x0012
	mapvkVKToVSC  = 0
	toUnicodeKeep = 0x4 // do not change kernel keyboard state

	vkBack     = 0x08
	vkShift    = 0x10
	vkControl  = 0x11
	vkMenu     = 0x12
	vkCapital  = 0x14
	vkSpace    = 0x20
	vkLWin     = 0x5B
	vkRWin     = 0x5C
	vkLShift   = 0xA0
	vkRMenu    = 0xA5
)

const stopTimeout = 2 * time.Second

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// The callback trampoline is created once; Windows callbacks are never freed.
var (
	activeHook   atomic.Pointer[SystemHook]
	hookCallback = windows.NewCallback(lowLevelKeyboardProc)
)

// SystemHook is the Windows low-level keyboard hook.
type SystemHook struct {
	BaseHook
	threadID atomic.Uint32
}

// NewSystemHook returns the platform hook.
func NewSystemHook() *SystemHook {
	return &SystemHook{}
}

// Start installs the hook on a dedicated thread and returns once the hook
// is installed or has failed.
func (h *SystemHook) Start(sink func(KeyEvent)) error {
	done, err := h.begin(sink)
	if err != nil {
		return err
	}
	ready := make(chan error, 1)
	go h.run(ready)
	if err := <-ready; err != nil {
		<-done
		return err
	}
	return nil
}

func (h *SystemHook) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer h.end()

	if !activeHook.CompareAndSwap(nil, h) {
		ready <- ErrAlreadyRunning
		return
	}
	defer activeHook.CompareAndSwap(h, nil)

	h.threadID.Store(windows.GetCurrentThreadId())
	defer h.threadID.Store(0)

	hhook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, hookCallback, 0, 0)
	if hhook == 0 {
		ready <- fmt.Errorf("SetWindowsHookExW: %w", callErr)
		return
	}
	defer procUnhookWindowsHookEx.Call(hhook)
	ready <- nil

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			return
		}
	}
}

// Stop asks the hook thread to quit and waits for it to unhook.
func (h *SystemHook) Stop() error {
	done := h.Done()
	if tid := h.threadID.Load(); tid != 0 {
		r, _, err := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
		if r == 0 {
			return fmt.Errorf("PostThreadMessageW: %w", err)
		}
	}
	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("hook thread did not exit within %s", stopTimeout)
	}
}

func lowLevelKeyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) == hcAction && (wParam == wmKeyDown || wParam == wmSysKeyDown) {
		if h := activeHook.Load(); h != nil {
			kb := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.emit(decode(kb))
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

func decode(kb *kbdllhookstruct) KeyEvent {
	ev := KeyEvent{
		ScanCode: scancode.Code(kb.ScanCode),
		Time:     time.Now(),
	}
	if ev.ScanCode == 0 {
		sc, _, _ := procMapVirtualKeyW.Call(uintptr(kb.VkCode), mapvkVKToVSC)
		ev.ScanCode = scancode.Code(sc)
	}

	switch vk := kb.VkCode; {
	case vk == vkSpace:
		ev.Kind = KindSpace
	case vk == vkBack:
		ev.Kind = KindBackspace
	case vk == vkShift, vk == vkControl, vk == vkMenu, vk == vkCapital,
		vk == vkLWin, vk == vkRWin, vk >= vkLShift && vk <= vkRMenu:
		ev.Kind = KindModifier
	default:
		if r, ok := toUnicode(kb.VkCode, kb.ScanCode); ok {
			ev.Kind = KindChar
			ev.Char = r
			ev.HasChar = true
		}
	}
	return ev
}

// toUnicode resolves the character a key produces under the layout of the
// foreground thread, honouring Shift, Ctrl, Alt and CapsLock.
func toUnicode(vk, sc uint32) (rune, bool) {
	var state [256]byte
	for _, mod := range []uintptr{vkShift, vkControl, vkMenu} {
		if s, _, _ := procGetAsyncKeyState.Call(mod); s&0x8000 != 0 {
			state[mod] = 0x80
		}
	}
	if s, _, _ := procGetKeyState.Call(vkCapital); s&0x1 != 0 {
		state[vkCapital] = 0x01
	}

	var tid uint32
	if hwnd := windows.GetForegroundWindow(); hwnd != 0 {
		tid, _ = windows.GetWindowThreadProcessId(hwnd, nil)
	}
	hkl, _, _ := procGetKeyboardLayout.Call(uintptr(tid))

	var buf [4]uint16
	n, _, _ := procToUnicodeEx.Call(
		uintptr(vk),
		uintptr(sc),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		toUnicodeKeep,
		hkl,
	)
	if int32(n) <= 0 {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(windows.UTF16ToString(buf[:n]))
	return r, size > 0
}
