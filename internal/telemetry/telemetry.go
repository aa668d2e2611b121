// Package telemetry models the desktop state the pause engine evaluates:
// display geometry, per-monitor window lists, idle time, and power state.
//
// The data arrives from two directions. The bridge delivers the backend's
// view (displays, window lists, idle, power) as one consistent snapshot;
// local probes read what only this process can see cheaply, such as the
// foreground window and its styles. The pause engine merges both.
package telemetry

import (
	"image"
	"strings"
	"time"
)

// ParseWindowState extracts the maximized and fullscreen flags from a wire
// state string. Matching is substring-based so decorated values such as
// "maximized (borderless)" still count, and both spellings of maximised are
// accepted. The two flags are independent; a backend may report a state
// matching both.
func ParseWindowState(s string) (maximized, fullscreen bool) {
	s = strings.ToLower(s)
	maximized = strings.Contains(s, "maximized") || strings.Contains(s, "maximised")
	fullscreen = strings.Contains(s, "fullscreen") || strings.Contains(s, "full screen")
	return maximized, fullscreen
}

// WindowInfo is one window on one monitor, as reported by the bridge.
type WindowInfo struct {
	Title      string
	Focused    bool
	Maximized  bool
	Fullscreen bool
}

// DisplayInfo is one display as reported by the bridge, with the backend's
// identifier used to key per-monitor window lists.
type DisplayInfo struct {
	ID      string
	Rect    image.Rectangle
	Primary bool
}

// SystemData is the system-wide portion of a snapshot.
type SystemData struct {
	Displays  []DisplayInfo
	Idle      time.Duration
	OnBattery bool
}

// Snapshot is one consistent view of desktop telemetry. The runtime reads
// exactly one snapshot per tick and feeds it to every instance, so no two
// instances ever see diverging global state within a tick.
type Snapshot struct {
	System SystemData
	// Apps lists windows per display, keyed by DisplayInfo.ID.
	Apps map[string][]WindowInfo
	// Flat is the key/value data feed bound into scenes.
	Flat  map[string]string
	Taken time.Time
}

// Foreground describes the current foreground window from the local probe.
type Foreground struct {
	// Probed is true when the platform probe actually queried the window
	// system. When false, Present carries no information and bridge data
	// stands alone.
	Probed bool
	// Present is false when there is no foreground window or the probe is
	// unavailable on this platform.
	Present bool
	Title   string
	Class   string
	// Rect is the window bounds in virtual-desktop coordinates.
	Rect image.Rectangle
	// Monitor is the bounds of the display the window is on.
	Monitor image.Rectangle
	// Maximized mirrors the window-manager zoomed state.
	Maximized bool
	// HasChrome is true when the window carries caption or resize-frame
	// styles. A window filling its monitor without chrome is fullscreen.
	HasChrome bool
	// Shell is true for the desktop shell's own windows (taskbar, desktop
	// icon host). Shell focus never counts as user focus.
	Shell bool
}

// Prober reads local desktop state. Implementations are per platform; any
// probe may report unavailable and the caller falls back to bridge data.
type Prober interface {
	// Foreground returns the current foreground window.
	Foreground() Foreground
	// Idle returns the time since the last user input.
	Idle() (time.Duration, bool)
	// OnBattery reports whether the machine runs unplugged.
	OnBattery() (bool, bool)
	// Cursor returns the cursor position in virtual-desktop coordinates.
	Cursor() (image.Point, bool)
}

// NewProber returns the platform prober.
func NewProber() Prober {
	return newPlatformProber()
}

// MonitorIDFor correlates an instance rect with the bridge's display list:
// the display with the greatest overlap area wins, falling back to the
// nearest center distance when nothing overlaps (e.g. a stale layout).
func MonitorIDFor(displays []DisplayInfo, rect image.Rectangle) (string, bool) {
	if len(displays) == 0 {
		return "", false
	}

	bestID := ""
	bestOverlap := 0
	for _, d := range displays {
		inter := d.Rect.Intersect(rect)
		if area := inter.Dx() * inter.Dy(); area > bestOverlap {
			bestOverlap = area
			bestID = d.ID
		}
	}
	if bestOverlap > 0 {
		return bestID, true
	}

	cx := rect.Min.X + rect.Dx()/2
	cy := rect.Min.Y + rect.Dy()/2
	bestDist := int64(-1)
	for _, d := range displays {
		dx := int64(d.Rect.Min.X + d.Rect.Dx()/2 - cx)
		dy := int64(d.Rect.Min.Y + d.Rect.Dy()/2 - cy)
		dist := dx*dx + dy*dy
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			bestID = d.ID
		}
	}
	return bestID, bestID != ""
}

// RectsMatch reports whether two rects coincide within eps pixels on every
// edge.
func RectsMatch(a, b image.Rectangle, eps int) bool {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	return abs(a.Min.X-b.Min.X) <= eps &&
		abs(a.Min.Y-b.Min.Y) <= eps &&
		abs(a.Max.X-b.Max.X) <= eps &&
		abs(a.Max.Y-b.Max.Y) <= eps
}
