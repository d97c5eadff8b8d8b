package engine

import "snipd/internal/scancode"

// BufferCapacity is the number of scan codes the input buffer retains.
const BufferCapacity = 20

// Buffer accumulates scan codes typed since the last reset. Once full it
// keeps only the most recent codes. It is owned by the worker goroutine.
type Buffer struct {
	codes    scancode.Sequence
	capacity int
}

// NewBuffer creates a buffer holding at most capacity codes.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = BufferCapacity
	}
	return &Buffer{
		codes:    make(scancode.Sequence, 0, capacity+1),
		capacity: capacity,
	}
}

// Push appends a code, dropping the oldest when over capacity.
func (b *Buffer) Push(c scancode.Code) {
	b.codes = append(b.codes, c)
	if over := len(b.codes) - b.capacity; over > 0 {
		n := copy(b.codes, b.codes[over:])
		b.codes = b.codes[:n]
	}
}

// Pop removes the most recent code. It reports false on an empty buffer.
func (b *Buffer) Pop() bool {
	if len(b.codes) == 0 {
		return false
	}
	b.codes = b.codes[:len(b.codes)-1]
	return true
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.codes = b.codes[:0]
}

// Len returns the number of buffered codes.
func (b *Buffer) Len() int {
	return len(b.codes)
}

// Snapshot returns a copy of the buffered codes.
func (b *Buffer) Snapshot() scancode.Sequence {
	return b.codes.Clone()
}
