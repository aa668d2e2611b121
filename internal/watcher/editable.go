package watcher

import (
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/assets"
)

const defaultEditableInterval = 250 * time.Millisecond

// EditablePoller feeds editable style variables into live scenes
// without recompiling. It diffs the editable overlay of each content
// directory against a cached signature on a fast cadence; the first
// sighting of a directory only seeds the cache, because the scene was
// just compiled from those very files. Not safe for concurrent use.
type EditablePoller struct {
	interval time.Duration
	read     func(dir string) (map[string]string, bool)
	last     map[string]string
	lastPoll time.Time
}

// NewEditablePoller creates a poller reading through the asset layer.
func NewEditablePoller(interval time.Duration) *EditablePoller {
	if interval <= 0 {
		interval = defaultEditableInterval
	}
	return &EditablePoller{
		interval: interval,
		read:     assets.ReadEditable,
		last:     make(map[string]string),
	}
}

// Poll reads the editables of each directory and returns the variable
// sets that changed, keyed by directory. Duplicate directories are
// read once. Calls closer together than the cadence return nil.
func (p *EditablePoller) Poll(now time.Time, dirs []string) map[string]map[string]string {
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < p.interval {
		return nil
	}
	p.lastPoll = now

	var changed map[string]map[string]string
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true

		vars, _ := p.read(dir)
		sig := assets.EditableSignature(vars)
		prev, known := p.last[dir]
		p.last[dir] = sig
		if !known || prev == sig {
			continue
		}
		if changed == nil {
			changed = make(map[string]map[string]string)
		}
		changed[dir] = vars
	}

	for dir := range p.last {
		if !seen[dir] {
			delete(p.last, dir)
		}
	}
	return changed
}
