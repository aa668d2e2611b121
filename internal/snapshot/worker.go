package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/bmp"

	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/metrics"
	"github.com/The-Ico2/sentinel-wallpaper/internal/store"
)

// ErrNoSnapshot reports that no persisted snapshot exists to fall back
// to.
var ErrNoSnapshot = errors.New("no persisted snapshot available")

// Options configures a Worker.
type Options struct {
	// Dir is where BMP files land.
	Dir string

	// Store receives a ledger row per persisted image and per apply.
	// Optional.
	Store *store.Store

	// Applier sets a written file as the OS wallpaper when a job asks
	// for it.
	Applier Applier

	// Metrics is optional.
	Metrics *metrics.EngineMetrics

	Log *logging.Logger
}

// Worker stitches and persists snapshot jobs off the tick goroutine.
type Worker struct {
	dir     string
	store   *store.Store
	applier Applier
	metrics *metrics.EngineMetrics
	log     *logging.Logger

	// jobs is a depth-1 mailbox. A pending job is replaced, never
	// queued behind.
	jobs chan Job

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker creates a stopped worker.
func NewWorker(opts Options) *Worker {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	return &Worker{
		dir:     opts.Dir,
		store:   opts.Store,
		applier: opts.Applier,
		metrics: opts.Metrics,
		log:     log.WithComponent("snapshot"),
		jobs:    make(chan Job, 1),
	}
}

// Start launches the worker goroutine. Starting a running worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop cancels the worker and waits for it to exit. A job still in the
// mailbox is dropped; shutdown takes its final snapshot synchronously
// through Process instead.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	w.cancel()
	w.wg.Wait()
}

// Offer hands a job to the worker without blocking the caller. A job
// already waiting in the mailbox is replaced; the newest capture wins.
func (w *Worker) Offer(job Job) {
	for {
		select {
		case w.jobs <- job:
			return
		default:
		}
		select {
		case <-w.jobs:
		default:
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			if _, err := w.Process(job); err != nil {
				w.log.Warn("snapshot job failed",
					"profile", job.Profile,
					"error", err)
			}
		}
	}
}

// Process stitches, encodes and persists one job synchronously. The
// bool reports whether an image was written; an all-black stitch is
// refused without error.
func (w *Worker) Process(job Job) (bool, error) {
	canvas, live := stitch(job.Frames)
	if !live {
		if w.metrics != nil {
			w.metrics.SnapshotRefusals.Inc()
		}
		w.log.Debug("snapshot refused, stitched canvas entirely black",
			"profile", job.Profile,
			"frames", len(job.Frames))
		return false, nil
	}

	path := filepath.Join(w.dir, fileName(job.Profile))
	if err := writeImage(path, canvas); err != nil {
		return false, fmt.Errorf("write snapshot: %w", err)
	}
	if w.metrics != nil {
		w.metrics.SnapshotWrites.Inc()
	}

	taken := job.Taken
	if taken.IsZero() {
		taken = time.Now()
	}
	if w.store != nil {
		rec := store.Record{
			Profile:  job.Profile,
			Topology: job.Topology,
			Path:     path,
			Taken:    taken,
		}
		if err := w.store.RecordSnapshot(rec); err != nil {
			w.log.Warn("snapshot ledger write failed", "error", err)
		}
	}

	if job.Apply {
		if err := w.applyFile(path, job.Topology, job.Reason); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ApplyPersisted sets the best previously persisted snapshot as the OS
// wallpaper: the ledger row for the current topology first, then the
// newest ledger row for any topology, then the newest BMP on disk.
func (w *Worker) ApplyPersisted(topology, reason string) (string, error) {
	path := w.persistedPath(topology)
	if path == "" {
		return "", ErrNoSnapshot
	}
	if err := w.applyFile(path, topology, reason); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Worker) persistedPath(topology string) string {
	if w.store != nil {
		rec, err := w.store.LatestForTopology(topology)
		if err != nil {
			w.log.Warn("snapshot ledger lookup failed", "error", err)
		}
		if rec != nil && fileExists(rec.Path) {
			return rec.Path
		}
		rec, err = w.store.Latest()
		if err != nil {
			w.log.Warn("snapshot ledger lookup failed", "error", err)
		}
		if rec != nil && fileExists(rec.Path) {
			return rec.Path
		}
	}
	return newestOnDisk(w.dir)
}

func (w *Worker) applyFile(path, topology, reason string) error {
	if w.applier == nil {
		return errors.New("no wallpaper applier configured")
	}
	if err := w.applier.Apply(path); err != nil {
		return fmt.Errorf("set system wallpaper: %w", err)
	}
	if w.metrics != nil {
		w.metrics.SnapshotApplies.Inc()
	}
	if w.store != nil {
		if err := w.store.RecordApply(path, topology, reason); err != nil {
			w.log.Warn("apply ledger write failed", "error", err)
		}
	}
	w.log.Info("snapshot applied as system wallpaper",
		"path", path,
		"reason", reason)
	return nil
}

// writeImage encodes img to a temp file and renames it into place, so
// a reader never sees a half-written BMP.
func writeImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode bmp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// newestOnDisk returns the most recently modified BMP in dir, or "".
func newestOnDisk(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var best string
	var bestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".bmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime()
		}
	}
	return best
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
