package store

import "time"

// Record is one persisted snapshot image: which profile it belongs to,
// the monitor topology it was stitched on, and where the file lives.
type Record struct {
	Profile  string
	Topology string
	Path     string
	Taken    time.Time
}

// Apply is one occasion a snapshot was set as the real OS wallpaper.
type Apply struct {
	ID       int64
	Path     string
	Topology string
	// Reason is the transition that applied it: boot, pause, refresh,
	// or shutdown.
	Reason    string
	AppliedAt time.Time
}
