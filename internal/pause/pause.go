// Package pause decides when wallpaper instances should stop rendering.
//
// Rendering pauses when the desktop is effectively invisible behind a
// focused, maximized, or fullscreen window, when the user has gone idle, or
// when the machine runs unplugged. The window triggers each carry their own
// scope: off, the instance's own monitor, or any monitor. Evaluation is
// pure: one observation in, one set of per-instance decisions out. Side
// effects of a transition (window visibility, snapshot capture, bridge
// gating) belong to the caller.
package pause

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/telemetry"
)

// Mode is the scope of one pause trigger.
type Mode int

const (
	// Off never triggers.
	Off Mode = iota
	// PerMonitor triggers only when the condition holds on the
	// instance's own monitor.
	PerMonitor
	// AllMonitors triggers when the condition holds anywhere.
	AllMonitors
)

// String returns the canonical config spelling.
func (m Mode) String() string {
	switch m {
	case PerMonitor:
		return "per-monitor"
	case AllMonitors:
		return "all-monitors"
	default:
		return "off"
	}
}

// ParseMode reads a mode from its config spellings. Boolean spellings map
// to the legacy per-monitor behavior.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disabled", "false":
		return Off, nil
	case "per-monitor", "per_monitor", "permonitor", "monitor", "true":
		return PerMonitor, nil
	case "all-monitors", "all_monitors", "allmonitors", "global", "all":
		return AllMonitors, nil
	default:
		return Off, fmt.Errorf("unknown pause mode: %q", s)
	}
}

// FromLegacyBool maps the old boolean pause flags onto modes.
func FromLegacyBool(v bool) Mode {
	if v {
		return PerMonitor
	}
	return Off
}

// Triggered applies the scope rule: Off never fires, PerMonitor fires on
// the local condition, AllMonitors on the global one.
func Triggered(m Mode, local, global bool) bool {
	switch m {
	case PerMonitor:
		return local
	case AllMonitors:
		return global
	default:
		return false
	}
}

// Triggers is one instance's pause policy.
type Triggers struct {
	Focus      Mode
	Maximized  Mode
	Fullscreen Mode
	// OnBattery pauses the instance whenever the machine runs unplugged.
	OnBattery bool
}

// Flags are the observed window conditions for one scope.
type Flags struct {
	Focused    bool
	Maximized  bool
	Fullscreen bool
}

func (f Flags) or(o Flags) Flags {
	return Flags{
		Focused:    f.Focused || o.Focused,
		Maximized:  f.Maximized || o.Maximized,
		Fullscreen: f.Fullscreen || o.Fullscreen,
	}
}

func windowFlags(w telemetry.WindowInfo) Flags {
	return Flags{
		Focused:    w.Focused,
		Maximized:  w.Maximized,
		Fullscreen: w.Fullscreen,
	}
}

// GlobalFlags ORs window conditions across every display's window list.
func GlobalFlags(windows map[string][]telemetry.WindowInfo) Flags {
	var flags Flags
	for _, list := range windows {
		for _, w := range list {
			flags = flags.or(windowFlags(w))
		}
	}
	return flags
}

// DisplayFlags ORs window conditions for one display id.
func DisplayFlags(windows map[string][]telemetry.WindowInfo, id string) Flags {
	var flags Flags
	for _, w := range windows[id] {
		flags = flags.or(windowFlags(w))
	}
	return flags
}

// FullscreenEpsilon is the pixel slack when matching a window rect against
// a monitor rect.
const FullscreenEpsilon = 1

// Target is one instance under evaluation.
type Target struct {
	Key      string
	Area     image.Rectangle
	Triggers Triggers
}

// Observation is the desktop state for one evaluation: the bridge's
// display and window lists plus the local foreground probe, with idle and
// power already merged by the caller.
type Observation struct {
	Displays   []telemetry.DisplayInfo
	Windows    map[string][]telemetry.WindowInfo
	Foreground telemetry.Foreground
	Idle       time.Duration
	OnBattery  bool
}

// Decision is the outcome for one target.
type Decision struct {
	Key     string
	Paused  bool
	Changed bool
	// Local carries the per-monitor flags that fed the decision, for
	// diagnostics.
	Local Flags
}

// Evaluation is the outcome of one pass over all targets.
type Evaluation struct {
	Decisions []Decision
	Global    Flags
	Idle      bool
	OnBattery bool

	Changed   bool
	AnyPaused bool
	AllPaused bool
	// NewlyPaused is true when at least one target flipped into paused.
	NewlyPaused bool
	// Resumed is true when this pass left the all-paused state.
	Resumed bool
}

// Engine tracks per-instance pause state across evaluations. It is driven
// from the tick loop only and does no locking.
type Engine struct {
	idleAfter time.Duration
	states    map[string]bool
}

// NewEngine returns an engine with the given idle threshold; zero disables
// the idle trigger.
func NewEngine(idleAfter time.Duration) *Engine {
	return &Engine{idleAfter: idleAfter, states: make(map[string]bool)}
}

// SetIdleThreshold replaces the idle threshold; zero disables it.
func (e *Engine) SetIdleThreshold(d time.Duration) {
	e.idleAfter = d
}

// Reset forgets all per-instance state. Called on every apply pass, since
// freshly hosted instances start unpaused.
func (e *Engine) Reset() {
	e.states = make(map[string]bool)
}

// Evaluate computes the pause decision for every target from a single
// observation. Targets absent from earlier passes start unpaused; state
// for targets no longer present is dropped.
func (e *Engine) Evaluate(obs Observation, targets []Target) Evaluation {
	var ev Evaluation
	if len(targets) == 0 {
		return ev
	}

	fg := obs.Foreground
	// The shell's own windows (Progman, WorkerW, the taskbars) holding
	// focus means no app does. A probe that ran and found no foreground
	// window counts the same; the bridge may still report a focused
	// window, so the flag is forced off in both scopes.
	shellForeground := fg.Shell || (fg.Probed && !fg.Present)
	fgUsable := fg.Present && !fg.Shell

	var fgFlags Flags
	if fgUsable {
		fgFlags = Flags{
			Focused:   true,
			Maximized: fg.Maximized,
			Fullscreen: !fg.Monitor.Empty() && !fg.HasChrome &&
				telemetry.RectsMatch(fg.Rect, fg.Monitor, FullscreenEpsilon),
		}
	}

	global := GlobalFlags(obs.Windows).or(fgFlags)
	if shellForeground {
		global.Focused = false
	}

	idle := e.idleAfter > 0 && obs.Idle >= e.idleAfter

	ev.Global = global
	ev.Idle = idle
	ev.OnBattery = obs.OnBattery
	ev.Decisions = make([]Decision, 0, len(targets))

	allBefore := true
	allNow := true
	next := make(map[string]bool, len(targets))

	for _, t := range targets {
		var local Flags
		if id, ok := telemetry.MonitorIDFor(obs.Displays, t.Area); ok {
			local = DisplayFlags(obs.Windows, id)
		}
		if fgUsable && telemetry.RectsMatch(t.Area, fg.Monitor, FullscreenEpsilon) {
			local = local.or(fgFlags)
		}
		if shellForeground {
			local.Focused = false
		}

		paused := idle ||
			(t.Triggers.OnBattery && obs.OnBattery) ||
			Triggered(t.Triggers.Focus, local.Focused, global.Focused) ||
			Triggered(t.Triggers.Maximized, local.Maximized, global.Maximized) ||
			Triggered(t.Triggers.Fullscreen, local.Fullscreen, global.Fullscreen)

		prev := e.states[t.Key]
		allBefore = allBefore && prev
		changed := paused != prev
		if changed {
			ev.Changed = true
			if paused {
				ev.NewlyPaused = true
			}
		}
		if paused {
			ev.AnyPaused = true
		} else {
			allNow = false
		}
		next[t.Key] = paused

		ev.Decisions = append(ev.Decisions, Decision{
			Key:     t.Key,
			Paused:  paused,
			Changed: changed,
			Local:   local,
		})
	}

	e.states = next
	ev.AllPaused = allNow
	ev.Resumed = allBefore && !allNow
	return ev
}
