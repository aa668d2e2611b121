package runtime

import (
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
	"github.com/The-Ico2/sentinel-wallpaper/internal/snapshot"
	"github.com/The-Ico2/sentinel-wallpaper/internal/telemetry"
)

// TickResult reports what one tick asks of the main loop.
type TickResult struct {
	// Reapply is set when leaving the all-paused state calls for a full
	// apply pass.
	Reapply bool

	// Quit is set when the window system asked the process to exit.
	Quit bool
}

// Tick runs one iteration of the engine loop: pump window messages,
// feed fresh telemetry into live scenes, poll editable variables,
// evaluate pause policy on its cadence, forward the cursor, render,
// and keep the crash snapshot fresh.
func (r *Runtime) Tick(now time.Time) TickResult {
	var res TickResult

	timer := r.metrics.StartTickTimer()
	defer timer.Stop()

	if r.manager.Pump() {
		res.Quit = true
		return res
	}

	r.metrics.UpdateUptime()
	r.observeBridge()

	snap, haveSnap := r.bridge.Snapshot()
	if haveSnap && !snap.Taken.Equal(r.lastFed) {
		r.lastFed = snap.Taken
		for _, inst := range r.instances {
			if !inst.Paused() {
				inst.UpdateData(snap.Flat)
			}
		}
	}

	if r.cfg.Watcher.Enabled {
		r.pollEditables(now)
	}

	interval := time.Duration(r.cfg.Pausing.CheckIntervalMs) * time.Millisecond
	if len(r.instances) > 0 && (r.lastPauseEval.IsZero() || now.Sub(r.lastPauseEval) >= interval) {
		r.lastPauseEval = now
		if r.syncPause(snap, haveSnap) {
			res.Reapply = true
		}
	}

	if r.cfg.Runtime.ForwardCursor {
		if pt, ok := r.prober.Cursor(); ok {
			for _, inst := range r.instances {
				if !inst.Paused() {
					inst.Pointer(pt)
				}
			}
		}
	}

	for _, inst := range r.instances {
		if inst.Paused() || inst.Failed() {
			continue
		}
		if inst.RenderFrame() {
			r.metrics.FramesTotal.Inc()
		} else {
			r.metrics.FramesDropped.Inc()
		}
	}

	if r.cfg.Snapshot.Enabled && r.worker != nil && !r.allPaused && len(r.instances) > 0 {
		refresh := time.Duration(r.cfg.Snapshot.RefreshIntervalSec) * time.Second
		if now.Sub(r.lastSnapshot) >= refresh {
			r.lastSnapshot = now
			if job := r.captureJob(false, "refresh"); len(job.Frames) > 0 {
				r.worker.Offer(job)
			}
		}
	}

	return res
}

// observeBridge tracks backend reachability transitions. Rendering
// never stops on a lost backend; scenes just keep their cached data.
func (r *Runtime) observeBridge() {
	up := r.bridge.Connected()
	if r.bridgeUpSeen && up == r.bridgeUp {
		return
	}

	first := !r.bridgeUpSeen
	r.bridgeUpSeen = true
	r.bridgeUp = up
	r.metrics.BridgeConnected.SetBool(up)
	if first {
		return
	}

	if up {
		r.metrics.BridgeReconnects.Inc()
		r.log.Info("backend reachable again")
	} else {
		r.log.Warn("backend unreachable, rendering continues on cached data")
	}
}

func (r *Runtime) pollEditables(now time.Time) {
	changed := r.editables.Poll(now, r.dirs)
	if len(changed) == 0 {
		return
	}
	for dir, vars := range changed {
		for _, inst := range r.instances {
			if inst.AssetDir() == dir {
				inst.ApplyEditable(vars)
			}
		}
		if r.cfg.Diagnostics.LogWatcherReloads {
			r.log.Info("editable variables applied", "dir", dir, "values", len(vars))
		}
	}
}

// syncPause runs one pause evaluation and applies the transition side
// effects in order: capture while every window is still visible, then
// window visibility, then bridge gating. The pause capture is stitched
// and applied on the worker, so the OS wallpaper shows up a beat after
// the windows hide; the pixels themselves predate the hide. Returns
// whether the pass left the all-paused state and a re-apply is wanted.
func (r *Runtime) syncPause(snap telemetry.Snapshot, haveSnap bool) bool {
	targets := make([]pause.Target, len(r.instances))
	for i, inst := range r.instances {
		targets[i] = pause.Target{
			Key:      inst.Key(),
			Area:     inst.Area().Rect,
			Triggers: inst.Triggers(),
		}
	}

	ev := r.engine.Evaluate(r.observation(snap, haveSnap), targets)
	if !ev.Changed {
		return false
	}

	flips := 0
	paused := 0
	for _, d := range ev.Decisions {
		if d.Changed {
			flips++
		}
		if d.Paused {
			paused++
		}
	}
	r.metrics.RecordPauseEvaluation(flips, paused)

	// Hidden windows read back black, so the pause snapshot is captured
	// before any visibility flips.
	if ev.NewlyPaused && ev.AllPaused && r.cfg.Snapshot.Enabled && r.worker != nil {
		if job := r.captureJob(true, "pause"); len(job.Frames) > 0 {
			r.worker.Offer(job)
		}
	}

	for i, d := range ev.Decisions {
		inst := r.instances[i]
		inst.SetPaused(d.Paused)
		r.manager.SetVisible(inst.Window(), !d.Paused)
		if d.Changed && r.cfg.Diagnostics.LogPauseStateChanges {
			state := "resumed"
			if d.Paused {
				state = "paused"
			}
			r.log.Info("instance "+state,
				"key", d.Key,
				"focused", d.Local.Focused,
				"maximized", d.Local.Maximized,
				"fullscreen", d.Local.Fullscreen,
				"idle", ev.Idle,
				"battery", ev.OnBattery)
		}
	}

	if ev.AllPaused != r.allPaused {
		r.allPaused = ev.AllPaused
		if ev.AllPaused {
			if err := r.bridge.Pause(); err != nil {
				r.log.Debug("backend pause call failed", "error", err)
			}
		} else {
			if err := r.bridge.Resume(); err != nil {
				r.log.Debug("backend resume call failed", "error", err)
			}
		}
	}

	return ev.Resumed && r.cfg.Runtime.ReapplyOnPauseChange
}

// observation merges the bridge snapshot with the local probes. Local
// answers win where both sides have one.
func (r *Runtime) observation(snap telemetry.Snapshot, haveSnap bool) pause.Observation {
	var obs pause.Observation
	if haveSnap {
		obs.Displays = snap.System.Displays
		obs.Windows = snap.Apps
		obs.Idle = snap.System.Idle
		obs.OnBattery = snap.System.OnBattery
	}
	obs.Foreground = r.prober.Foreground()
	if idle, ok := r.prober.Idle(); ok {
		obs.Idle = idle
	}
	if battery, ok := r.prober.OnBattery(); ok {
		obs.OnBattery = battery
	}
	return obs
}

// captureJob reads back every still-rendering window on the tick
// goroutine. The frames are owned copies; stitching happens on the
// worker.
func (r *Runtime) captureJob(apply bool, reason string) snapshot.Job {
	targets := make([]snapshot.Target, 0, len(r.instances))
	for _, inst := range r.instances {
		if inst.Paused() {
			continue
		}
		targets = append(targets, snapshot.Target{
			Window: inst.Window(),
			Rect:   inst.Area().Rect,
		})
	}
	if len(targets) == 0 {
		return snapshot.Job{}
	}

	timer := r.metrics.CaptureDuration.Timer()
	frames := snapshot.CaptureAll(r.capturer, targets)
	timer.Stop()

	return snapshot.Job{
		Profile:  snapshotName(r.topology),
		Topology: r.topology,
		Frames:   frames,
		Apply:    apply,
		Reason:   reason,
		Taken:    time.Now(),
	}
}

// snapshotName keys snapshot files by topology so different layouts do
// not overwrite each other's recovery image.
func snapshotName(topology string) string {
	return "desktop-" + topology
}
