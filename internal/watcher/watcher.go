// Package watcher detects changes to the sources a wallpaper runs
// from. Content directories are polled by newest recursive mtime and
// debounced so a burst of editor saves becomes one reload; editable
// style variables ride a faster poll that skips recompilation
// entirely; the config file itself is watched through fsnotify.
package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultInterval = 600 * time.Millisecond
	defaultDebounce = 400 * time.Millisecond
)

// dirState tracks one content directory between polls.
type dirState struct {
	newest  time.Time
	pending bool
	armedAt time.Time
}

// Poller watches content directories by newest recursive mtime. It is
// passive: the engine loop calls Poll and recompiles whatever comes
// back. Not safe for concurrent use.
type Poller struct {
	interval time.Duration
	debounce time.Duration
	dirs     map[string]*dirState
	lastPoll time.Time
}

// NewPoller creates a poller. Non-positive durations fall back to the
// defaults.
func NewPoller(interval, debounce time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Poller{
		interval: interval,
		debounce: debounce,
		dirs:     make(map[string]*dirState),
	}
}

// Track sets the watched directory set. Directories already tracked
// keep their state, new ones adopt the current on-disk state without
// firing, dropped ones are forgotten.
func (p *Poller) Track(dirs []string) {
	next := make(map[string]*dirState, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if st, ok := p.dirs[dir]; ok {
			next[dir] = st
			continue
		}
		next[dir] = &dirState{newest: newestMtime(dir)}
	}
	p.dirs = next
}

// Poll returns the directories whose quiet window just elapsed. A
// detected change arms the debounce; any further change before the
// window closes re-arms it, so rapid successive writes coalesce into
// one reload. Calls closer together than the poll interval return nil
// without touching the disk.
func (p *Poller) Poll(now time.Time) []string {
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < p.interval {
		return nil
	}
	p.lastPoll = now

	var fire []string
	for dir, st := range p.dirs {
		newest := newestMtime(dir)
		if newest.IsZero() {
			// Unreadable or empty right now; leave the state alone.
			continue
		}
		if !newest.Equal(st.newest) {
			st.newest = newest
			st.pending = true
			st.armedAt = now
			continue
		}
		if st.pending && now.Sub(st.armedAt) >= p.debounce {
			st.pending = false
			fire = append(fire, dir)
		}
	}
	sort.Strings(fire)
	return fire
}

// Rebase adopts the current on-disk state of every tracked directory
// without firing and clears pending debounces. Called after a full
// apply, when every scene has just been compiled from these files.
func (p *Poller) Rebase() {
	for dir, st := range p.dirs {
		st.newest = newestMtime(dir)
		st.pending = false
		st.armedAt = time.Time{}
	}
}

// newestMtime walks dir and returns the newest modification time among
// files that can trigger a reload. Directory mtimes never count, so
// creating an ignored file does not trip the parent.
func newestMtime(dir string) time.Time {
	var newest time.Time
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignoredFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mt := info.ModTime(); mt.After(newest) {
			newest = mt
		}
		return nil
	})
	return newest
}

// ignoredFile filters files whose changes must not recompile scenes:
// metadata read on demand, the editable overlay handled by its own
// poll, and editor temp or backup litter.
func ignoredFile(name string) bool {
	switch strings.ToLower(name) {
	case "manifest.json", "meta.json", "editable.yaml":
		return true
	}
	if strings.HasPrefix(name, ".~") || strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".temp", ".swp", ".bak":
		return true
	}
	return false
}

func ignoredDir(name string) bool {
	return strings.EqualFold(name, "preview")
}
