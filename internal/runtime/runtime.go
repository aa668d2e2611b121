// Package runtime hosts the wallpaper engine. It owns every live
// instance, runs the apply pass that maps config profiles onto the
// current monitor layout, and drives the per-tick work of feeding
// telemetry, evaluating pause policy, rendering, and keeping the
// crash-recovery snapshot fresh.
//
// Everything here runs on the process main goroutine. The snapshot
// worker and the bridge poller are the only concurrent parts, and both
// are reached through a mailbox or a cached-read boundary, so the
// runtime itself does no locking.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/assets"
	"github.com/The-Ico2/sentinel-wallpaper/internal/bridge"
	"github.com/The-Ico2/sentinel-wallpaper/internal/config"
	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/The-Ico2/sentinel-wallpaper/internal/instance"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/metrics"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
	"github.com/The-Ico2/sentinel-wallpaper/internal/render"
	"github.com/The-Ico2/sentinel-wallpaper/internal/snapshot"
	"github.com/The-Ico2/sentinel-wallpaper/internal/store"
	"github.com/The-Ico2/sentinel-wallpaper/internal/telemetry"
	"github.com/The-Ico2/sentinel-wallpaper/internal/watcher"
)

// Bridge is the backend surface the runtime consumes. *bridge.Bridge
// implements it; tests substitute a fake.
type Bridge interface {
	Snapshot() (telemetry.Snapshot, bool)
	Connected() bool
	ListAssets(category string) ([]bridge.Asset, error)
	Pause() error
	Resume() error
	Stop()
}

// Deps are the collaborators the runtime composes. Bridge, Backend and
// Manager are required; the rest default to their platform versions,
// except Worker and Store, which stay optional.
type Deps struct {
	Bridge  Bridge
	Backend render.Backend
	Manager hostwin.Manager

	Store   *store.Store
	Metrics *metrics.EngineMetrics

	Prober     telemetry.Prober
	Enumerator monitor.Enumerator

	Worker   *snapshot.Worker
	Capturer snapshot.Capturer

	Log *logging.Logger
}

// Runtime orchestrates hosting. Not safe for concurrent use; the main
// loop owns it.
type Runtime struct {
	cfg *config.Config
	log *logging.Logger

	bridge   Bridge
	backend  render.Backend
	manager  hostwin.Manager
	store    *store.Store
	metrics  *metrics.EngineMetrics
	prober   telemetry.Prober
	enum     monitor.Enumerator
	worker   *snapshot.Worker
	capturer snapshot.Capturer

	engine    *pause.Engine
	editables *watcher.EditablePoller

	instances []*instance.Instance
	dirs      []string
	monitors  []monitor.Area
	topology  string

	bridgeUp      bool
	bridgeUpSeen  bool
	lastFed       time.Time
	lastPauseEval time.Time
	lastSnapshot  time.Time
	allPaused     bool
}

// New wires the runtime and starts its snapshot worker; the worker is
// stopped again in Shutdown.
func New(cfg *config.Config, deps Deps) *Runtime {
	log := deps.Log
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("runtime")

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewEngineMetrics(nil)
	}
	if deps.Prober == nil {
		deps.Prober = telemetry.NewProber()
	}
	if deps.Enumerator == nil {
		deps.Enumerator = monitor.SystemEnumerator()
	}
	if deps.Capturer == nil {
		deps.Capturer = snapshot.NewCapturer()
	}

	idle := time.Duration(cfg.Pausing.IdleTimeoutMs) * time.Millisecond
	editable := time.Duration(cfg.Watcher.EditableIntervalMs) * time.Millisecond

	r := &Runtime{
		cfg:       cfg,
		log:       log,
		bridge:    deps.Bridge,
		backend:   deps.Backend,
		manager:   deps.Manager,
		store:     deps.Store,
		metrics:   deps.Metrics,
		prober:    deps.Prober,
		enum:      deps.Enumerator,
		worker:    deps.Worker,
		capturer:  deps.Capturer,
		engine:    pause.NewEngine(idle),
		editables: watcher.NewEditablePoller(editable),
	}
	if r.worker != nil {
		r.worker.Start(context.Background())
	}
	return r
}

// UpdateConfig swaps the active configuration after a hot reload. The
// caller follows with Apply so profile and cadence changes take effect.
func (r *Runtime) UpdateConfig(cfg *config.Config) {
	r.cfg = cfg
}

// Apply runs one full hosting pass: enumerate monitors, fetch the asset
// registry, then rebuild every instance from the enabled profiles.
// Existing instances are torn down only once enumeration and the
// registry fetch have both succeeded, so a failed pass leaves the
// previous generation hosted and the persisted snapshot untouched.
func (r *Runtime) Apply(ctx context.Context) error {
	start := time.Now()

	areas, err := r.enum.Enumerate()
	if err != nil {
		return fmt.Errorf("enumerate monitors: %w", err)
	}

	list, err := r.bridge.ListAssets("wallpaper")
	if err != nil {
		return fmt.Errorf("list wallpaper assets: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.closeInstances()
	r.engine.Reset()
	r.engine.SetIdleThreshold(time.Duration(r.cfg.Pausing.IdleTimeoutMs) * time.Millisecond)
	r.monitors = areas
	r.topology = monitor.Signature(areas)
	// A re-apply while all-paused starts its fresh instances unpaused;
	// the backend and its poller must come back with them, since the
	// next pause evaluation may see no change to react to.
	if r.allPaused {
		if err := r.bridge.Resume(); err != nil {
			r.log.Debug("backend resume call failed", "error", err)
		}
	}
	r.allPaused = false
	// Fresh instances start unpaused; evaluate policy on the next tick.
	r.lastPauseEval = time.Time{}
	r.lastSnapshot = start

	registry := assets.NewRegistry(list, r.log)
	assigned := make(map[int]bool)

	for _, p := range assets.OrderProfiles(r.cfg.EnabledProfiles()) {
		asset, ok := registry.Resolve(p.WallpaperID)
		if !ok {
			r.log.Warn("wallpaper not in registry", "section", p.Section, "id", p.WallpaperID)
			continue
		}
		launch, err := registry.ResolveLaunch(asset)
		if err != nil {
			r.log.Warn("wallpaper not launchable", "section", p.Section, "error", err)
			continue
		}
		if launch.Kind != assets.LaunchMarkup {
			r.log.Warn("unsupported wallpaper kind",
				"section", p.Section, "id", p.WallpaperID, "kind", launch.Kind.String())
			continue
		}

		targets := assets.ResolveTargets(areas, p.MonitorSelectors, assigned)
		if len(targets) == 0 {
			r.log.Warn("no unassigned monitors match profile", "section", p.Section)
			continue
		}

		// A claimed monitor is consumed even when hosting it fails, so
		// later profiles cannot double-book it mid-pass.
		if strings.EqualFold(p.Mode, "span") && len(targets) > 1 {
			span := assets.SpanArea(targets)
			for _, tgt := range targets {
				assigned[tgt.Index] = true
			}
			r.host(p, launch, span)
			continue
		}
		for _, tgt := range targets {
			assigned[tgt.Index] = true
			r.host(p, launch, tgt)
		}
	}

	r.dirs = r.collectDirs()

	elapsed := time.Since(start)
	r.metrics.RecordApplyPass(elapsed, len(r.instances), len(areas))
	r.log.Info("apply pass complete",
		"hosted", len(r.instances),
		"monitors", len(areas),
		"topology", r.topology,
		"elapsed", elapsed)
	return nil
}

func (r *Runtime) host(p config.Profile, launch assets.LaunchSpec, area monitor.Area) {
	inst, err := instance.Launch(instance.Options{
		Key:      fmt.Sprintf("%s:%d", p.Section, area.Index),
		AssetID:  p.WallpaperID,
		Launch:   launch,
		Area:     area,
		ZOrder:   hostwin.ParseZOrder(p.ZOrder),
		Triggers: p.Triggers(),
		Manager:  r.manager,
		Backend:  r.backend,
		Log:      r.log,
	})
	if err != nil {
		r.metrics.InstanceFailures.Inc()
		r.log.Error("hosting failed",
			"section", p.Section, "monitor", area.Index, "error", err)
		return
	}
	r.instances = append(r.instances, inst)
}

func (r *Runtime) collectDirs() []string {
	seen := make(map[string]bool, len(r.instances))
	var dirs []string
	for _, inst := range r.instances {
		dir := inst.AssetDir()
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// ContentDirs returns the unique asset directories behind the live
// instances, for watcher tracking. The slice is shared; callers must
// not mutate it.
func (r *Runtime) ContentDirs() []string {
	return r.dirs
}

// Hosted returns the live instance count.
func (r *Runtime) Hosted() int { return len(r.instances) }

// Topology returns the layout signature of the last apply pass.
func (r *Runtime) Topology() string { return r.topology }

// Recompile rebuilds the scenes sourced from the given directories in
// place. A failed recompile keeps the previous scene running.
func (r *Runtime) Recompile(dirs []string) {
	for _, dir := range dirs {
		recompiled := 0
		for _, inst := range r.instances {
			if inst.AssetDir() != dir {
				continue
			}
			if inst.Recompile() == nil {
				recompiled++
				r.metrics.Recompiles.Inc()
			}
		}
		if r.cfg.Diagnostics.LogWatcherReloads {
			r.log.Info("content reloaded", "dir", dir, "instances", recompiled)
		}
	}
}

// TopologyChanged re-enumerates the displays and reports whether the
// layout moved since the last apply pass. Enumeration failures read as
// unchanged; the next check retries.
func (r *Runtime) TopologyChanged() bool {
	areas, err := r.enum.Enumerate()
	if err != nil {
		r.log.Debug("monitor enumeration failed", "error", err)
		return false
	}
	return monitor.Changed(r.monitors, areas)
}

// Shutdown ends hosting. The snapshot worker is stopped first so the
// final capture cannot race a queued keep-fresh write, then one last
// frame set is captured and applied as the OS wallpaper, falling back
// to the newest persisted file. Instances close before the bridge and
// store release.
func (r *Runtime) Shutdown() {
	if r.worker != nil {
		r.worker.Stop()
	}

	if r.worker != nil && r.cfg.Snapshot.Enabled && r.cfg.Snapshot.ApplyOnShutdown {
		applied := false
		if job := r.captureJob(true, "shutdown"); len(job.Frames) > 0 {
			written, err := r.worker.Process(job)
			if err != nil {
				r.log.Warn("final snapshot failed", "error", err)
			}
			applied = written && err == nil
		}
		if !applied {
			if _, err := r.worker.ApplyPersisted(r.topology, "shutdown"); err != nil {
				r.log.Warn("no persisted snapshot to leave behind", "error", err)
			}
		}
	}

	r.closeInstances()
	r.bridge.Stop()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warn("state store close failed", "error", err)
		}
	}
	r.log.Info("runtime stopped")
}

func (r *Runtime) closeInstances() {
	for _, inst := range r.instances {
		inst.Close()
	}
	r.instances = nil
	r.dirs = nil
}
