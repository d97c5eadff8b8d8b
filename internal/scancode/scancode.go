// Package scancode maps characters to hardware keyboard scan codes.
//
// A scan code identifies a physical key position, independent of the active
// keyboard layout. Abbreviations are translated into every plausible
// scan-code sequence once, at index build time, so that matching at runtime
// is a plain sequence comparison regardless of which layout the user has
// switched to.
package scancode

import (
	"fmt"
	"strings"
)

// Code is a set-1 keyboard scan code.
type Code uint16

// Scan codes used by the listener and the replacement procedure.
const (
	Backspace Code = 0x0E
	V         Code = 0x2F
	Ctrl      Code = 0x1D
	Shift     Code = 0x2A
	Dot       Code = 0x34
	Slash     Code = 0x35
	Space     Code = 0x39
	Left      Code = 0x4B // extended
	Insert    Code = 0x52 // extended
	Delete    Code = 0x53 // extended
)

// IsExtended reports whether the key is sent with the extended-key flag.
func IsExtended(c Code) bool {
	switch c {
	case Left, Insert, Delete:
		return true
	}
	return false
}

// Sequence is an ordered run of scan codes.
type Sequence []Code

// Key is a comparable encoding of a Sequence, usable as a map key.
// Two sequences have the same Key exactly when they are element-wise equal.
type Key string

// Key returns the map key for the sequence.
func (s Sequence) Key() Key {
	b := make([]byte, 0, len(s)*2)
	for _, c := range s {
		b = append(b, byte(c>>8), byte(c))
	}
	return Key(b)
}

// Clone returns an independent copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Equal reports element-wise equality.
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String formats the sequence as dash-separated hex, e.g. "34-30-13-30".
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = fmt.Sprintf("%02X", uint16(c))
	}
	return strings.Join(parts, "-")
}

// IsDotPrefix reports whether the sequence starts with the dot or slash key.
// Abbreviations conventionally start with "." which lands on the slash key
// under the Cyrillic layout, so diagnostics are limited to these buffers.
func IsDotPrefix(s Sequence) bool {
	return len(s) > 0 && (s[0] == Dot || s[0] == Slash)
}
