//go:build windows

package keystroke

import (
	"fmt"
	"unsafe"

	"snipd/internal/scancode"
)

var procSendInput = user32.NewProc("SendInput")

const (
	inputKeyboard        = 1
	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002
	keyeventfScanCode    = 0x0008
)

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// input mirrors INPUT. The trailing padding makes the union as large as
// MOUSEINPUT on both 32- and 64-bit Windows.
type input struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

// SystemInjector sends scan-code key events through SendInput.
type SystemInjector struct{}

// NewSystemInjector returns the platform injector.
func NewSystemInjector() *SystemInjector {
	return &SystemInjector{}
}

// Press sends a key-down.
func (SystemInjector) Press(code scancode.Code, extended bool) error {
	return send(keyInput(code, extended, false))
}

// Release sends a key-up.
func (SystemInjector) Release(code scancode.Code, extended bool) error {
	return send(keyInput(code, extended, true))
}

// Tap sends a key-down and key-up in one batch.
func (SystemInjector) Tap(code scancode.Code, extended bool) error {
	return send(keyInput(code, extended, false), keyInput(code, extended, true))
}

func keyInput(code scancode.Code, extended, up bool) input {
	flags := uint32(keyeventfScanCode)
	if extended {
		flags |= keyeventfExtendedKey
	}
	if up {
		flags |= keyeventfKeyUp
	}
	return input{
		Type: inputKeyboard,
		Ki:   keybdInput{Scan: uint16(code), Flags: flags},
	}
}

func send(events ...input) error {
	n, _, callErr := procSendInput.Call(
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		unsafe.Sizeof(events[0]),
	)
	if int(n) != len(events) {
		return fmt.Errorf("%w: %d of %d events (%v)", ErrPartialSend, n, len(events), callErr)
	}
	return nil
}
