// Package focus queries the foreground window and evaluates window filters
// against it.
package focus

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoWindow is returned when no window currently has focus.
var ErrNoWindow = errors.New("focus: no foreground window")

// ErrNotAvailable is returned on platforms without a foreground window query.
var ErrNotAvailable = errors.New("focus: not available on this platform")

// Info describes the foreground window. Any field may be empty when the
// operating system refuses to report it.
type Info struct {
	Title   string
	Class   string
	Process string // executable base name, e.g. "winword.exe"
	PID     int
}

// ProcessKey identifies the owning process for cooldown bookkeeping: the
// executable name when known, otherwise "pid:N".
func (i Info) ProcessKey() string {
	if i.Process != "" {
		return i.Process
	}
	return "pid:" + strconv.Itoa(i.PID)
}

// Querier reports the currently focused window.
type Querier interface {
	ActiveWindow() (Info, error)
}

// MatchMode selects how filter fields are compared.
type MatchMode string

const (
	// Contains is a case-insensitive substring match.
	Contains MatchMode = "contains"
	// Exact is byte-for-byte equality.
	Exact MatchMode = "exact"
)

// ParseMatchMode maps a configured value to a mode. Anything other than
// "exact" is treated as Contains.
func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), string(Exact)) {
		return Exact
	}
	return Contains
}

// Filter restricts a snippet to windows whose title and/or class match.
// Empty fields are not checked; a filter with no fields matches everything.
type Filter struct {
	Title string    `json:"title,omitempty" yaml:"title,omitempty"`
	Class string    `json:"class,omitempty" yaml:"class,omitempty"`
	Mode  MatchMode `json:"match_mode,omitempty" yaml:"match_mode,omitempty"`
}

// IsEmpty reports whether the filter has no title and no class.
func (f *Filter) IsEmpty() bool {
	return f == nil || (strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Class) == "")
}

// Match reports whether the window satisfies every field present on f.
func (f *Filter) Match(w Info) bool {
	if f.IsEmpty() {
		return true
	}
	if title := strings.TrimSpace(f.Title); title != "" && !f.compare(title, w.Title) {
		return false
	}
	if class := strings.TrimSpace(f.Class); class != "" && !f.compare(class, w.Class) {
		return false
	}
	return true
}

// compare matches a trimmed filter value against the raw window string.
func (f *Filter) compare(want, have string) bool {
	if f.Mode == Exact {
		return want == have
	}
	lower := cases.Lower(language.Und)
	return strings.Contains(lower.String(have), lower.String(want))
}

// Static is a Querier that always reports the same window.
type Static struct {
	Info Info
	Err  error
}

// ActiveWindow implements Querier.
func (s *Static) ActiveWindow() (Info, error) {
	return s.Info, s.Err
}
