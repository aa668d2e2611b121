package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/bridge"
	"github.com/The-Ico2/sentinel-wallpaper/internal/config"
	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/metrics"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
	"github.com/The-Ico2/sentinel-wallpaper/internal/render"
	"github.com/The-Ico2/sentinel-wallpaper/internal/runtime"
	"github.com/The-Ico2/sentinel-wallpaper/internal/snapshot"
	"github.com/The-Ico2/sentinel-wallpaper/internal/store"
	"github.com/The-Ico2/sentinel-wallpaper/internal/watcher"
)

// cmdRun hosts the configured wallpapers until the process is signalled
// or the window system asks it to quit.
func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	path := configFlag(fs)
	fs.Parse(os.Args[2:])

	loader := config.NewLoader(*path)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer loader.Close()

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directories: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging.Build())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(log)
	defer log.Close()

	crash := logging.NewCrashHandler(logging.DefaultCrashDir(), version, "daemon")
	defer crash.Recover()

	log.Info("sentinel-wallpaperd starting",
		"version", version, "config", *path, "data_root", cfg.Root())

	st, err := store.Open(cfg.StatePath())
	if err != nil {
		// The ledger only speeds up crash recovery; the engine runs
		// without it on the newest-file-on-disk fallback.
		log.Warn("state store unavailable", "path", cfg.StatePath(), "error", err)
		st = nil
	} else {
		if pruned, err := st.PruneMissing(); err != nil {
			log.Warn("snapshot ledger prune failed", "error", err)
		} else if pruned > 0 {
			log.Info("pruned stale snapshot rows", "rows", pruned)
		}
	}

	m := metrics.NewEngineMetrics(nil)

	worker := snapshot.NewWorker(snapshot.Options{
		Dir:     cfg.SnapshotDir(),
		Store:   st,
		Applier: snapshot.NewApplier(),
		Metrics: m,
		Log:     log,
	})

	// Crash recovery: put the last persisted frame up before anything is
	// hosted, so the desktop is never black while instances launch.
	if cfg.Snapshot.Enabled && cfg.Snapshot.ApplyOnBoot {
		topology := ""
		if areas, err := monitor.SystemEnumerator().Enumerate(); err == nil {
			topology = monitor.Signature(areas)
		}
		if applied, err := worker.ApplyPersisted(topology, "boot"); err != nil {
			log.Debug("no recovery snapshot to apply", "error", err)
		} else {
			log.Info("recovery snapshot applied", "path", applied)
		}
	}

	br := bridge.New(bridge.Config{
		Endpoint:     cfg.Bridge.Endpoint,
		PollInterval: time.Duration(cfg.Bridge.PollIntervalMs) * time.Millisecond,
		Sections:     cfg.Bridge.Sections,
	}, log)
	br.Start()

	rt := runtime.New(cfg, runtime.Deps{
		Bridge:  br,
		Backend: render.Noop(),
		Manager: hostwin.New(),
		Store:   st,
		Metrics: m,
		Worker:  worker,
		Log:     log,
	})

	poller := watcher.NewPoller(
		time.Duration(cfg.Watcher.IntervalMs)*time.Millisecond,
		time.Duration(cfg.Watcher.DebounceMs)*time.Millisecond)

	ctx := context.Background()
	applyPass := func() {
		if err := rt.Apply(ctx); err != nil {
			log.Error("apply pass failed, previous wallpapers stay up", "error", err)
			return
		}
		poller.Track(rt.ContentDirs())
		poller.Rebase()
	}
	applyPass()

	// Reloaded configs arrive on a depth-1 channel; the newest wins.
	reloads := make(chan *config.Config, 1)
	loader.OnChange(func(next *config.Config) {
		for {
			select {
			case reloads <- next:
				return
			default:
			}
			select {
			case <-reloads:
			default:
			}
		}
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config hot-reload disabled", "error", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	tickSleep := time.Duration(cfg.Runtime.TickSleepMs) * time.Millisecond
	monitorCheck := time.Duration(cfg.Runtime.MonitorCheckIntervalMs) * time.Millisecond
	lastMonitorCheck := time.Now()

	log.Info("engine running", "hosted", rt.Hosted(), "tick_sleep", tickSleep)

loop:
	for {
		select {
		case sig := <-sigs:
			log.Info("shutdown signal received", "signal", sig.String())
			break loop
		case next := <-reloads:
			log.Info("configuration changed, reapplying")
			cfg = next
			rt.UpdateConfig(cfg)
			tickSleep = time.Duration(cfg.Runtime.TickSleepMs) * time.Millisecond
			monitorCheck = time.Duration(cfg.Runtime.MonitorCheckIntervalMs) * time.Millisecond
			applyPass()
		case err := <-loader.Errors():
			log.Warn("config reload rejected, keeping active config", "error", err)
		default:
		}

		now := time.Now()
		res := rt.Tick(now)
		if res.Quit {
			log.Info("window system requested exit")
			break
		}
		if res.Reapply {
			log.Info("resumed from all-paused, reapplying")
			applyPass()
		}

		if cfg.Watcher.Enabled {
			if dirs := poller.Poll(now); len(dirs) > 0 {
				rt.Recompile(dirs)
			}
		}

		if now.Sub(lastMonitorCheck) >= monitorCheck {
			lastMonitorCheck = now
			if rt.TopologyChanged() {
				log.Info("monitor topology changed, reapplying")
				applyPass()
			}
		}

		time.Sleep(tickSleep)
	}

	rt.Shutdown()
	log.Info("engine stopped", "summary", m.Snapshot())
}
