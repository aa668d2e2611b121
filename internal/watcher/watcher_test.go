package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func touchAt(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestPollerFiresAfterQuietWindow(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "scene.xml")

	p := NewPoller(100*time.Millisecond, 400*time.Millisecond)
	p.Track([]string{dir})

	base := time.Now()
	if fired := p.Poll(base); len(fired) != 0 {
		t.Fatalf("unchanged directory fired: %v", fired)
	}

	touchAt(t, file, base.Add(time.Second))

	if fired := p.Poll(base.Add(150 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("fired while arming: %v", fired)
	}
	if fired := p.Poll(base.Add(300 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("fired inside the quiet window: %v", fired)
	}

	fired := p.Poll(base.Add(600 * time.Millisecond))
	if len(fired) != 1 || fired[0] != dir {
		t.Fatalf("expected reload of %s, got %v", dir, fired)
	}

	if fired := p.Poll(base.Add(800 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("fired twice for one change: %v", fired)
	}
}

func TestPollerCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "scene.xml")

	p := NewPoller(100*time.Millisecond, 400*time.Millisecond)
	p.Track([]string{dir})

	base := time.Now()
	p.Poll(base)

	touchAt(t, file, base.Add(time.Second))
	p.Poll(base.Add(200 * time.Millisecond))

	// A second write inside the quiet window restarts it.
	touchAt(t, file, base.Add(2*time.Second))
	p.Poll(base.Add(400 * time.Millisecond))

	if fired := p.Poll(base.Add(600 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("fired before the restarted window closed: %v", fired)
	}

	fired := p.Poll(base.Add(900 * time.Millisecond))
	if len(fired) != 1 || fired[0] != dir {
		t.Fatalf("expected one coalesced reload, got %v", fired)
	}
}

func TestPollerIgnoresNoise(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "scene.xml")
	preview := filepath.Join(dir, "Preview")
	if err := os.MkdirAll(preview, 0755); err != nil {
		t.Fatalf("mkdir preview: %v", err)
	}

	p := NewPoller(100*time.Millisecond, 400*time.Millisecond)
	p.Track([]string{dir})

	base := time.Now()
	p.Poll(base)

	future := base.Add(time.Second)
	noise := []string{
		"manifest.json", "meta.json", "editable.yaml",
		"scene.xml~", ".~lock.scene#", "cache.tmp", "swap.swp", "old.bak",
	}
	for _, name := range noise {
		touchAt(t, writeSource(t, dir, name), future)
	}
	touchAt(t, writeSource(t, preview, "shot.png"), future)

	if fired := p.Poll(base.Add(200 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("noise fired a reload: %v", fired)
	}
	if fired := p.Poll(base.Add(700 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("noise fired a reload after the window: %v", fired)
	}

	// A real source change still gets through.
	touchAt(t, writeSource(t, dir, "style.css"), future)
	p.Poll(base.Add(900 * time.Millisecond))
	fired := p.Poll(base.Add(1400 * time.Millisecond))
	if len(fired) != 1 || fired[0] != dir {
		t.Fatalf("expected reload after source change, got %v", fired)
	}
}

func TestPollerTrackKeepsStateAndDropsStale(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	fileA := writeSource(t, dirA, "scene.xml")
	fileB := writeSource(t, dirB, "scene.xml")

	p := NewPoller(100*time.Millisecond, 400*time.Millisecond)
	p.Track([]string{dirA, dirB})

	base := time.Now()
	p.Poll(base)

	future := base.Add(time.Second)
	touchAt(t, fileA, future)
	touchAt(t, fileB, future)
	p.Poll(base.Add(200 * time.Millisecond))

	// Retracking keeps dirA's armed debounce and forgets dirB.
	p.Track([]string{dirA})

	fired := p.Poll(base.Add(700 * time.Millisecond))
	if len(fired) != 1 || fired[0] != dirA {
		t.Fatalf("expected only %s, got %v", dirA, fired)
	}
}

func TestPollerRebaseSwallowsPendingChanges(t *testing.T) {
	dir := t.TempDir()
	file := writeSource(t, dir, "scene.xml")

	p := NewPoller(100*time.Millisecond, 400*time.Millisecond)
	p.Track([]string{dir})

	base := time.Now()
	p.Poll(base)

	touchAt(t, file, base.Add(time.Second))
	p.Poll(base.Add(200 * time.Millisecond))

	p.Rebase()

	if fired := p.Poll(base.Add(700 * time.Millisecond)); len(fired) != 0 {
		t.Fatalf("rebased change fired: %v", fired)
	}

	touchAt(t, file, base.Add(2*time.Second))
	p.Poll(base.Add(900 * time.Millisecond))
	fired := p.Poll(base.Add(1400 * time.Millisecond))
	if len(fired) != 1 {
		t.Fatalf("change after rebase should fire, got %v", fired)
	}
}

func TestIgnoredFile(t *testing.T) {
	tests := []struct {
		name    string
		ignored bool
	}{
		{"manifest.json", true},
		{"Manifest.JSON", true},
		{"meta.json", true},
		{"editable.yaml", true},
		{"scene.xml~", true},
		{".~lock.scene#", true},
		{"cache.tmp", true},
		{"frame.TEMP", true},
		{"swap.swp", true},
		{"old.bak", true},
		{"scene.xml", false},
		{"style.css", false},
		{"backup.xml", false},
		{"tilde~file.xml", false},
	}

	for _, tt := range tests {
		if got := ignoredFile(tt.name); got != tt.ignored {
			t.Errorf("ignoredFile(%q) = %v, want %v", tt.name, got, tt.ignored)
		}
	}
}

func TestIgnoredDir(t *testing.T) {
	for name, want := range map[string]bool{
		"preview":  true,
		"Preview":  true,
		"previews": false,
		"assets":   false,
	} {
		if got := ignoredDir(name); got != want {
			t.Errorf("ignoredDir(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEditablePollerDiffs(t *testing.T) {
	vals := map[string]map[string]string{
		"/a": {"speed": "1"},
	}

	p := NewEditablePoller(250 * time.Millisecond)
	p.read = func(dir string) (map[string]string, bool) {
		v, ok := vals[dir]
		return v, ok
	}

	base := time.Now()

	// First sight seeds the cache without firing.
	if got := p.Poll(base, []string{"/a"}); got != nil {
		t.Fatalf("first poll fired: %v", got)
	}

	vals["/a"] = map[string]string{"speed": "2"}

	// Under the cadence nothing is read.
	if got := p.Poll(base.Add(100*time.Millisecond), []string{"/a"}); got != nil {
		t.Fatalf("polled under the cadence: %v", got)
	}

	got := p.Poll(base.Add(300*time.Millisecond), []string{"/a", "/a"})
	if len(got) != 1 || got["/a"]["speed"] != "2" {
		t.Fatalf("expected changed vars for /a, got %v", got)
	}

	// Unchanged values stay quiet.
	if got := p.Poll(base.Add(600*time.Millisecond), []string{"/a"}); got != nil {
		t.Fatalf("unchanged editables fired: %v", got)
	}

	// Directories no longer polled are forgotten.
	p.Poll(base.Add(900*time.Millisecond), nil)
	if len(p.last) != 0 {
		t.Fatalf("stale editable state kept: %v", p.last)
	}
}
