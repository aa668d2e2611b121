// Package render defines the contract between the hosting engine and the
// content rendering backend.
//
// The backend compiles markup + stylesheet sources into a live scene, ticks
// the scene to produce draw instructions, and submits those instructions to
// a surface bound to a host window. The engine never looks inside any of
// these; it only reacts to the error classes below.
package render

import (
	"errors"
	"time"
)

// Backend error classes the engine reacts to.
var (
	// ErrSurfaceLost indicates the surface was lost and must be rebuilt
	// or resized before the next submit.
	ErrSurfaceLost = errors.New("render: surface lost")
	// ErrSurfaceOutdated indicates the surface no longer matches the
	// window size; a resize recovers it.
	ErrSurfaceOutdated = errors.New("render: surface outdated")
	// ErrOutOfMemory indicates the device is out of memory. Fatal for the
	// affected instance, never for the process.
	ErrOutOfMemory = errors.New("render: out of device memory")
)

// DrawList is an opaque batch of draw instructions produced by a Scene and
// consumed by a Surface of the same backend.
type DrawList any

// Scene is one compiled, live content document.
type Scene interface {
	// Tick advances the scene by dt for the given viewport and returns
	// the frame's draw instructions.
	Tick(width, height int, dt time.Duration) DrawList

	// UpdateData feeds a batch of flat telemetry values into the scene's
	// data bindings.
	UpdateData(data map[string]string)

	// SetVariables overrides editable style variables in place.
	SetVariables(vars map[string]string)

	// InvalidateLayout forces a relayout on the next tick.
	InvalidateLayout()

	// PointerMoved forwards a cursor position in scene-local pixels.
	PointerMoved(x, y int)

	// Close releases scene resources.
	Close()
}

// Surface is a presentable render target bound to one host window.
type Surface interface {
	// Submit presents one frame of draw instructions.
	Submit(list DrawList) error

	// Resize adjusts the surface to a new pixel size.
	Resize(width, height int)

	// Close releases the surface. Must be called before the host window
	// it is bound to is destroyed.
	Close()
}

// CompileContext carries per-instance parameters into compilation.
type CompileContext struct {
	// Name identifies the instance for diagnostics.
	Name string
	// AssetDir is the content directory the sources live in.
	AssetDir string
	// Width and Height are the initial viewport in pixels.
	Width  int
	Height int
}

// Backend compiles content and creates surfaces.
type Backend interface {
	// Compile builds a scene from markup and stylesheet files.
	Compile(markupPath, stylesheetPath string, ctx CompileContext) (Scene, error)

	// CreateSurface binds a new surface to a host window.
	CreateSurface(window uintptr, width, height int) (Surface, error)
}
