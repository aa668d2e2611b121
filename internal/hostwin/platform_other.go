//go:build !windows

package hostwin

// New returns a stub manager. Desktop embedding only exists on Windows;
// elsewhere the engine still runs its full lifecycle against recorded
// windows.
func New() Manager {
	return NewStub()
}
