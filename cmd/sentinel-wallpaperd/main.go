// sentinel-wallpaperd - Dynamic wallpaper hosting engine
//
//	sentinel-wallpaperd run        Host wallpapers and stay in the foreground
//	sentinel-wallpaperd check      Validate the configuration and exit
//	sentinel-wallpaperd snapshot   Apply the newest persisted snapshot
//	sentinel-wallpaperd status     Show configuration and backend reachability
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/bridge"
	"github.com/The-Ico2/sentinel-wallpaper/internal/config"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
	"github.com/The-Ico2/sentinel-wallpaper/internal/snapshot"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "check":
		cmdCheck()
	case "snapshot":
		cmdSnapshot()
	case "status":
		cmdStatus()
	case "version", "-v", "--version":
		fmt.Println("sentinel-wallpaperd " + version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`sentinel-wallpaperd - Dynamic Wallpaper Hosting Engine

USAGE:
    sentinel-wallpaperd <command> [options]

COMMANDS:
    run         Host configured wallpapers until interrupted
    check       Load and validate the configuration, then exit
    snapshot    Apply the newest persisted snapshot as the wallpaper
    status      Show effective configuration and backend reachability
    version     Print the version
    help        Show this help message

OPTIONS:
    -config <path>   Configuration file (default: the addon config path,
                     overridable with SENTINEL_WALLPAPER_CONFIG)

The engine embeds rendered wallpapers into the desktop background layer,
pauses them while the desktop is covered, idle, or on battery, and keeps
a stitched snapshot on disk so a crash falls back to the last good frame.`)
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", config.DefaultConfigPath(), "configuration file path")
}

func loadConfig(path string) *config.Config {
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", path, err)
		os.Exit(1)
	}
	return cfg
}

func cmdCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	path := configFlag(fs)
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*path)

	fmt.Printf("Config:    %s\n", *path)
	fmt.Printf("Data root: %s\n", cfg.Root())
	fmt.Printf("Profiles:  %d enabled\n", len(cfg.EnabledProfiles()))
	for _, p := range cfg.EnabledProfiles() {
		fmt.Printf("  [%s] id=%s monitors=%s mode=%s z=%s\n",
			p.Section, p.WallpaperID,
			strings.Join(p.MonitorSelectors, ","), p.Mode, p.ZOrder)
	}
	fmt.Println()
	fmt.Println("Configuration OK")
}

func cmdSnapshot() {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	path := configFlag(fs)
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*path)

	worker := snapshot.NewWorker(snapshot.Options{
		Dir:     cfg.SnapshotDir(),
		Applier: snapshot.NewApplier(),
	})

	topology := ""
	if areas, err := monitor.SystemEnumerator().Enumerate(); err == nil {
		topology = monitor.Signature(areas)
	}

	applied, err := worker.ApplyPersisted(topology, "manual")
	if err != nil {
		fmt.Fprintf(os.Stderr, "No snapshot to apply: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied snapshot: %s\n", applied)
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	path := configFlag(fs)
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*path)

	fmt.Println("=== sentinel-wallpaperd Status ===")
	fmt.Println()
	fmt.Printf("Config:    %s\n", *path)
	fmt.Printf("Data root: %s\n", cfg.Root())
	fmt.Printf("Profiles:  %d enabled\n", len(cfg.EnabledProfiles()))

	areas, err := monitor.SystemEnumerator().Enumerate()
	if err != nil {
		fmt.Printf("Monitors:  enumeration failed (%v)\n", err)
	} else {
		fmt.Printf("Monitors:  %d (topology %s)\n", len(areas), monitor.Signature(areas))
		for _, a := range areas {
			primary := ""
			if a.Primary {
				primary = " primary"
			}
			fmt.Printf("  [%d] %v%s\n", a.Index, a.Rect, primary)
		}
	}

	br := bridge.New(bridge.Config{
		Endpoint:     cfg.Bridge.Endpoint,
		PollInterval: time.Duration(cfg.Bridge.PollIntervalMs) * time.Millisecond,
		Sections:     cfg.Bridge.Sections,
	}, nil)
	defer br.Stop()
	if _, err := br.Quick("data", "system", map[string]any{"sections": []string{"system"}}); err != nil {
		fmt.Printf("Backend:   unreachable (%v)\n", err)
	} else {
		fmt.Printf("Backend:   reachable at %s\n", cfg.Bridge.Endpoint)
	}
}
