package keystroke

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// SystemClipboard accesses the OS clipboard as plain text.
type SystemClipboard struct{}

// NewSystemClipboard returns the platform clipboard.
func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

// ReadText returns the current clipboard text.
func (SystemClipboard) ReadText() (string, error) {
	if clipboard.Unsupported {
		return "", ErrNotAvailable
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// WriteText replaces the clipboard contents with text.
func (SystemClipboard) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrNotAvailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// MemoryClipboard is an in-process clipboard for testing.
type MemoryClipboard struct {
	mu       sync.Mutex
	text     string
	has      bool
	writes   []string
	ReadErr  error
	WriteErr error
}

// NewMemoryClipboard creates a clipboard holding text.
func NewMemoryClipboard(text string) *MemoryClipboard {
	return &MemoryClipboard{text: text, has: true}
}

// ReadText implements Clipboard.
func (m *MemoryClipboard) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	if !m.has {
		return "", ErrNotAvailable
	}
	return m.text, nil
}

// WriteText implements Clipboard.
func (m *MemoryClipboard) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.text = text
	m.has = true
	m.writes = append(m.writes, text)
	return nil
}

// Text returns the current contents.
func (m *MemoryClipboard) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns every value written, in order.
func (m *MemoryClipboard) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}
