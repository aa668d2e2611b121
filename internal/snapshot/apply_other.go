//go:build !windows

package snapshot

// noopApplier keeps the persisted file without touching the desktop.
// Pointing the background at an image is a Windows shell operation;
// other platforms only write the recovery file.
type noopApplier struct{}

// NewApplier returns the native wallpaper applier.
func NewApplier() Applier {
	return noopApplier{}
}

func (noopApplier) Apply(string) error { return nil }
