//go:build !windows

package focus

// System is the platform window querier. Only Windows is supported; on other
// platforms every query fails, so filtered snippets never match.
type System struct{}

// NewSystem returns the platform window querier.
func NewSystem() *System {
	return &System{}
}

// ActiveWindow implements Querier.
func (System) ActiveWindow() (Info, error) {
	return Info{}, ErrNotAvailable
}

// ForegroundPID always returns 0.
func (System) ForegroundPID() int {
	return 0
}
