package snapshot

import (
	"context"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/metrics"
	"github.com/The-Ico2/sentinel-wallpaper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// Test helpers

func newTestWorker(t *testing.T, opts Options) *Worker {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Log == nil {
		log, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
		require.NoError(t, err)
		opts.Log = log
	}
	return NewWorker(opts)
}

// solidFrame fills rect with one BGRX color.
func solidFrame(rect image.Rectangle, b, g, r byte) Frame {
	pix := make([]byte, rect.Dx()*rect.Dy()*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = b
		pix[i+1] = g
		pix[i+2] = r
		pix[i+3] = 0xFF
	}
	return Frame{Rect: rect, Pix: pix}
}

type recordApplier struct {
	applied []string
	err     error
}

func (a *recordApplier) Apply(path string) error {
	if a.err != nil {
		return a.err
	}
	a.applied = append(a.applied, path)
	return nil
}

type fakeCapturer struct {
	fail map[hostwin.Window]bool
}

func (c fakeCapturer) Capture(win hostwin.Window, rect image.Rectangle) (Frame, error) {
	if c.fail[win] {
		return Frame{}, errors.New("capture failed")
	}
	return solidFrame(rect, 0, 0, 0xFF), nil
}

// Stitch tests

func TestStitch_SingleFrame(t *testing.T) {
	canvas, live := stitch([]Frame{solidFrame(image.Rect(0, 0, 4, 2), 0x10, 0x20, 0x30)})

	require.True(t, live)
	require.NotNil(t, canvas)
	assert.Equal(t, image.Rect(0, 0, 4, 2), canvas.Bounds())
	// BGRX input lands as RGBA output.
	assert.Equal(t, color.RGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xFF}, canvas.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 0x30, G: 0x20, B: 0x10, A: 0xFF}, canvas.RGBAAt(3, 1))
}

func TestStitch_TranslatesToUnionOrigin(t *testing.T) {
	// A monitor left of the primary puts the union origin at negative
	// coordinates.
	left := solidFrame(image.Rect(-8, 0, -4, 2), 0x00, 0x00, 0xFF) // red
	right := solidFrame(image.Rect(0, 0, 4, 2), 0xFF, 0x00, 0x00)  // blue

	canvas, live := stitch([]Frame{left, right})

	require.True(t, live)
	assert.Equal(t, image.Rect(0, 0, 12, 2), canvas.Bounds())
	assert.Equal(t, color.RGBA{R: 0xFF, A: 0xFF}, canvas.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{B: 0xFF, A: 0xFF}, canvas.RGBAAt(8, 1))
	// The gap between the monitors stays opaque black.
	assert.Equal(t, color.RGBA{A: 0xFF}, canvas.RGBAAt(5, 0))
}

func TestStitch_RefusesAllBlack(t *testing.T) {
	canvas, live := stitch([]Frame{solidFrame(image.Rect(0, 0, 4, 4), 0, 0, 0)})
	assert.False(t, live)
	assert.NotNil(t, canvas)

	canvas, live = stitch(nil)
	assert.False(t, live)
	assert.Nil(t, canvas)
}

func TestStitch_SkipsMalformedFrames(t *testing.T) {
	short := Frame{Rect: image.Rect(0, 0, 64, 64), Pix: make([]byte, 16)}
	good := solidFrame(image.Rect(0, 0, 4, 4), 0x00, 0x00, 0xFF)

	canvas, live := stitch([]Frame{short, good})
	require.True(t, live)
	assert.Equal(t, image.Rect(0, 0, 4, 4), canvas.Bounds())

	canvas, live = stitch([]Frame{short})
	assert.False(t, live)
	assert.Nil(t, canvas)
}

// Naming tests

func TestFileName(t *testing.T) {
	tests := []struct {
		profile string
		want    string
	}{
		{"wallpaper", "wallpaper.bmp"},
		{"wallpaper:0", "wallpaper_0.bmp"},
		{"Main Monitor/1", "Main_Monitor_1.bmp"},
		{"über", "_ber.bmp"},
		{"", "wallpaper.bmp"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fileName(tt.profile), "profile %q", tt.profile)
	}
}

func TestFileName_HashesOverlongProfiles(t *testing.T) {
	long := strings.Repeat("p", 150)

	name := fileName(long)
	require.True(t, strings.HasSuffix(name, ".bmp"))
	stem := strings.TrimSuffix(name, ".bmp")
	assert.Len(t, stem, 32)
	_, err := hex.DecodeString(stem)
	assert.NoError(t, err)
	assert.Equal(t, name, fileName(long))
}

// Worker tests

func TestWorker_ProcessWritesAndRecords(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer st.Close()

	applier := &recordApplier{}
	m := metrics.NewEngineMetrics(nil)
	w := newTestWorker(t, Options{Dir: dir, Store: st, Applier: applier, Metrics: m})

	job := Job{
		Profile:  "wallpaper",
		Topology: "1920x1080@0,0",
		Frames:   []Frame{solidFrame(image.Rect(0, 0, 8, 4), 0x00, 0x00, 0xFF)},
		Apply:    true,
		Reason:   "pause",
		Taken:    time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	written, err := w.Process(job)
	require.NoError(t, err)
	require.True(t, written)

	path := filepath.Join(dir, "wallpaper.bmp")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := bmp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	rec, err := st.LatestForTopology("1920x1080@0,0")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, path, rec.Path)
	assert.True(t, rec.Taken.Equal(job.Taken))

	applies, err := st.RecentApplies(5)
	require.NoError(t, err)
	require.Len(t, applies, 1)
	assert.Equal(t, "pause", applies[0].Reason)
	assert.Equal(t, path, applies[0].Path)

	assert.Equal(t, []string{path}, applier.applied)
	assert.Equal(t, uint64(1), m.SnapshotWrites.Value())
	assert.Equal(t, uint64(1), m.SnapshotApplies.Value())

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestWorker_ProcessRefusesBlackCanvas(t *testing.T) {
	dir := t.TempDir()
	applier := &recordApplier{}
	m := metrics.NewEngineMetrics(nil)
	w := newTestWorker(t, Options{Dir: dir, Applier: applier, Metrics: m})

	job := Job{
		Profile: "dark",
		Frames:  []Frame{solidFrame(image.Rect(0, 0, 4, 4), 0, 0, 0)},
		Apply:   true,
		Reason:  "shutdown",
	}
	written, err := w.Process(job)
	require.NoError(t, err)
	assert.False(t, written)

	_, statErr := os.Stat(filepath.Join(dir, "dark.bmp"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, applier.applied)
	assert.Equal(t, uint64(1), m.SnapshotRefusals.Value())
	assert.Equal(t, uint64(0), m.SnapshotWrites.Value())
}

func TestWorker_OfferReplacesPending(t *testing.T) {
	w := newTestWorker(t, Options{})

	w.Offer(Job{Profile: "first"})
	w.Offer(Job{Profile: "second"})
	w.Offer(Job{Profile: "third"})

	select {
	case job := <-w.jobs:
		assert.Equal(t, "third", job.Profile)
	default:
		t.Fatal("mailbox empty after offers")
	}
	assert.Equal(t, 0, len(w.jobs))
}

func TestWorker_RunsOfferedJobs(t *testing.T) {
	dir := t.TempDir()
	w := newTestWorker(t, Options{Dir: dir})

	w.Start(context.Background())
	w.Start(context.Background()) // second start is a no-op
	defer w.Stop()

	w.Offer(Job{
		Profile: "live",
		Frames:  []Frame{solidFrame(image.Rect(0, 0, 4, 4), 0x00, 0x00, 0xFF)},
	})

	path := filepath.Join(dir, "live.bmp")
	require.Eventually(t, func() bool { return fileExists(path) },
		2*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop() // second stop is a no-op
}

func TestWorker_ApplyPersistedPrefersTopologyMatch(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer st.Close()

	applier := &recordApplier{}
	w := newTestWorker(t, Options{Dir: dir, Store: st, Applier: applier})

	oldPath := filepath.Join(dir, "old.bmp")
	newPath := filepath.Join(dir, "new.bmp")
	require.NoError(t, os.WriteFile(oldPath, []byte("bmp"), 0644))
	require.NoError(t, os.WriteFile(newPath, []byte("bmp"), 0644))
	require.NoError(t, st.RecordSnapshot(store.Record{
		Profile: "old", Topology: "dual", Path: oldPath,
		Taken: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, st.RecordSnapshot(store.Record{
		Profile: "new", Topology: "single", Path: newPath,
		Taken: time.Now(),
	}))

	// The topology match wins even though another row is newer.
	applied, err := w.ApplyPersisted("dual", "boot")
	require.NoError(t, err)
	assert.Equal(t, oldPath, applied)

	// An unknown topology falls back to the newest row overall.
	applied, err = w.ApplyPersisted("triple", "boot")
	require.NoError(t, err)
	assert.Equal(t, newPath, applied)

	applies, err := st.RecentApplies(5)
	require.NoError(t, err)
	require.Len(t, applies, 2)
	assert.Equal(t, "boot", applies[0].Reason)
}

func TestWorker_ApplyPersistedFallsBackToDisk(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer st.Close()

	applier := &recordApplier{}
	w := newTestWorker(t, Options{Dir: dir, Store: st, Applier: applier})

	// The ledger points at a file that no longer exists; a stray BMP
	// without a row sits on disk.
	require.NoError(t, st.RecordSnapshot(store.Record{
		Profile: "ghost", Topology: "dual",
		Path:  filepath.Join(dir, "ghost.bmp"),
		Taken: time.Now(),
	}))
	stray := filepath.Join(dir, "stray.bmp")
	require.NoError(t, os.WriteFile(stray, []byte("bmp"), 0644))

	applied, err := w.ApplyPersisted("dual", "shutdown")
	require.NoError(t, err)
	assert.Equal(t, stray, applied)

	empty := newTestWorker(t, Options{Dir: t.TempDir(), Applier: applier})
	_, err = empty.ApplyPersisted("dual", "boot")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestCaptureAll_DropsFailedTargets(t *testing.T) {
	c := fakeCapturer{fail: map[hostwin.Window]bool{2: true}}
	targets := []Target{
		{Window: 1, Rect: image.Rect(0, 0, 4, 4)},
		{Window: 2, Rect: image.Rect(4, 0, 8, 4)},
		{Window: 3, Rect: image.Rect(8, 0, 12, 4)},
	}

	frames := CaptureAll(c, targets)
	require.Len(t, frames, 2)
	assert.Equal(t, image.Rect(0, 0, 4, 4), frames[0].Rect)
	assert.Equal(t, image.Rect(8, 0, 12, 4), frames[1].Rect)
}
