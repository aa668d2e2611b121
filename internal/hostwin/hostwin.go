// Package hostwin embeds wallpaper windows into the desktop background
// layer.
//
// On Windows the desktop background belongs to Progman and, once poked
// with message 0x052C, to a WorkerW window slotted behind the icon list.
// Wallpaper windows are created as children of that chain so they paint
// under the desktop icons and never show up in the taskbar or steal
// activation. Other platforms get a recording stub manager so the engine
// and its tests run anywhere.
package hostwin

import (
	"image"
	"strings"
)

// Window is an opaque OS window handle.
type Window uintptr

// None marks the absence of a window.
const None Window = 0

// ZOrder selects the band a hosted window sits in.
type ZOrder int

const (
	// ZDesktop pins the window at the bottom of the host chain, under
	// every sibling, which reads as "part of the desktop".
	ZDesktop ZOrder = iota
	// ZBottom is the lowest ordinary band.
	ZBottom
	// ZNormal lifts the window into the regular application band.
	ZNormal
	// ZTop raises the window to the top of its band.
	ZTop
	// ZTopmost floats the window above normal windows.
	ZTopmost
)

// ParseZOrder maps config z_index strings onto bands. Unknown strings
// fall back to the desktop band, the safe choice for a wallpaper.
func ParseZOrder(s string) ZOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bottom":
		return ZBottom
	case "normal":
		return ZNormal
	case "top":
		return ZTop
	case "topmost", "overlay":
		return ZTopmost
	}
	return ZDesktop
}

func (z ZOrder) String() string {
	switch z {
	case ZBottom:
		return "bottom"
	case ZNormal:
		return "normal"
	case ZTop:
		return "top"
	case ZTopmost:
		return "topmost"
	}
	return "desktop"
}

// Manager creates and manages windows embedded in the desktop layer.
// Implementations are not safe for concurrent use; the engine drives all
// window operations from its tick goroutine.
type Manager interface {
	// EnsureHost locates, spawning if needed, the desktop layer window
	// that children are parented into.
	EnsureHost() (Window, error)

	// CreateChild embeds a new child window covering rect, given in
	// virtual-desktop coordinates, inside host.
	CreateChild(host Window, rect image.Rectangle) (Window, error)

	// ApplyStyle strips window chrome, enforces the background style
	// bits and moves the window into the requested band.
	ApplyStyle(w Window, z ZOrder) error

	// SetVisible shows or hides a window without activating it.
	SetVisible(w Window, visible bool)

	// Destroy releases a child window.
	Destroy(w Window)

	// Pump drains pending window messages. True means the window system
	// asked the process to quit.
	Pump() (quit bool)
}
