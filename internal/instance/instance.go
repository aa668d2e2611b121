// Package instance ties one hosted wallpaper together: the embedded OS
// window, the render surface bound to it, and the compiled scene drawn
// into it. Each instance exclusively owns its triple; teardown order is
// scene, surface, then window, because the surface holds a reference to
// the window for as long as it lives.
package instance

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/assets"
	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
	"github.com/The-Ico2/sentinel-wallpaper/internal/render"
)

// maxFrameDelta caps the tick delta so animations do not jump after a
// long pause, a debugger stop, or a clock step.
const maxFrameDelta = 250 * time.Millisecond

// Options carries everything needed to host one wallpaper.
type Options struct {
	// Key identifies the instance across pause evaluations.
	Key     string
	AssetID string
	Launch  assets.LaunchSpec
	// Area is the hosted region in virtual-desktop coordinates; for span
	// profiles it covers several monitors.
	Area     monitor.Area
	ZOrder   hostwin.ZOrder
	Triggers pause.Triggers

	Manager hostwin.Manager
	Backend render.Backend
	Log     *logging.Logger
}

// Instance is one live hosted wallpaper. It is driven from the tick
// goroutine only and does no locking.
type Instance struct {
	key      string
	assetID  string
	launch   assets.LaunchSpec
	area     monitor.Area
	triggers pause.Triggers

	manager hostwin.Manager
	backend render.Backend
	window  hostwin.Window
	surface render.Surface
	scene   render.Scene
	log     *logging.Logger

	paused    bool
	failed    bool
	lastFrame time.Time
	editable  map[string]string
}

// Launch builds the window, surface, and scene for one hosted area. On
// any failure the pieces already built are released in teardown order and
// the error names the stage that failed.
func Launch(opts Options) (*Instance, error) {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("instance")

	host, err := opts.Manager.EnsureHost()
	if err != nil {
		return nil, fmt.Errorf("locate desktop host: %w", err)
	}

	win, err := opts.Manager.CreateChild(host, opts.Area.Rect)
	if err != nil {
		return nil, fmt.Errorf("create host window: %w", err)
	}
	if err := opts.Manager.ApplyStyle(win, opts.ZOrder); err != nil {
		opts.Manager.Destroy(win)
		return nil, fmt.Errorf("apply host style: %w", err)
	}

	w, h := viewport(opts.Area.Rect)
	surface, err := opts.Backend.CreateSurface(uintptr(win), w, h)
	if err != nil {
		opts.Manager.Destroy(win)
		return nil, fmt.Errorf("create surface: %w", err)
	}

	scene, err := opts.Backend.Compile(opts.Launch.Markup, opts.Launch.Stylesheet, render.CompileContext{
		Name:     opts.Launch.Name,
		AssetDir: opts.Launch.Dir,
		Width:    w,
		Height:   h,
	})
	if err != nil {
		surface.Close()
		opts.Manager.Destroy(win)
		return nil, fmt.Errorf("compile scene: %w", err)
	}

	log.Info("wallpaper hosted",
		"key", opts.Key,
		"asset", opts.AssetID,
		"rect", opts.Area.Rect.String(),
		"z", opts.ZOrder.String())

	return &Instance{
		key:       opts.Key,
		assetID:   opts.AssetID,
		launch:    opts.Launch,
		area:      opts.Area,
		triggers:  opts.Triggers,
		manager:   opts.Manager,
		backend:   opts.Backend,
		window:    win,
		surface:   surface,
		scene:     scene,
		log:       log,
		lastFrame: time.Now(),
	}, nil
}

func viewport(rect image.Rectangle) (int, int) {
	w, h := rect.Dx(), rect.Dy()
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Key returns the instance identity used by the pause engine.
func (i *Instance) Key() string { return i.key }

// AssetID returns the hosted registry asset id.
func (i *Instance) AssetID() string { return i.assetID }

// AssetDir returns the content directory the scene was compiled from.
func (i *Instance) AssetDir() string { return i.launch.Dir }

// Area returns the hosted region.
func (i *Instance) Area() monitor.Area { return i.area }

// Triggers returns the pause policy the instance was launched with.
func (i *Instance) Triggers() pause.Triggers { return i.triggers }

// Window returns the host window handle.
func (i *Instance) Window() hostwin.Window { return i.window }

// Paused reports whether rendering is suspended.
func (i *Instance) Paused() bool { return i.paused }

// Failed reports whether the instance hit a fatal render error and no
// longer draws.
func (i *Instance) Failed() bool { return i.failed }

// SetPaused flips the paused flag. Window visibility is the caller's
// responsibility.
func (i *Instance) SetPaused(paused bool) { i.paused = paused }

// RenderFrame advances the scene by the clamped time since the previous
// frame and submits it, reporting whether the frame reached the surface.
// A lost or outdated surface is resized to the hosted area and the frame
// dropped; device memory exhaustion disables the instance; any other
// submit failure drops the frame.
func (i *Instance) RenderFrame() bool {
	if i.failed || i.scene == nil {
		return false
	}

	now := time.Now()
	dt := now.Sub(i.lastFrame)
	i.lastFrame = now
	if dt < 0 {
		dt = 0
	}
	if dt > maxFrameDelta {
		dt = maxFrameDelta
	}

	w, h := viewport(i.area.Rect)
	list := i.scene.Tick(w, h, dt)

	err := i.surface.Submit(list)
	switch {
	case err == nil:
		return true
	case errors.Is(err, render.ErrSurfaceLost), errors.Is(err, render.ErrSurfaceOutdated):
		i.surface.Resize(w, h)
	case errors.Is(err, render.ErrOutOfMemory):
		i.log.Error("render device out of memory", "key", i.key, "asset", i.assetID)
		i.failed = true
	default:
		i.log.Warn("frame dropped", "key", i.key, "error", err)
	}
	return false
}

// UpdateData feeds one batch of flat telemetry values into the scene.
func (i *Instance) UpdateData(data map[string]string) {
	if i.failed || i.scene == nil {
		return
	}
	i.scene.UpdateData(data)
}

// ApplyEditable pushes style-variable overrides into the live scene and
// forces a relayout. The values are kept so a later recompile starts
// from the same overrides.
func (i *Instance) ApplyEditable(vars map[string]string) {
	i.editable = vars
	if i.failed || i.scene == nil {
		return
	}
	i.scene.SetVariables(vars)
	i.scene.InvalidateLayout()
}

// Pointer maps a virtual-desktop cursor position into the hosted area's
// local coordinates and forwards it to the scene.
func (i *Instance) Pointer(pt image.Point) {
	if i.failed || i.scene == nil {
		return
	}
	i.scene.PointerMoved(pt.X-i.area.Rect.Min.X, pt.Y-i.area.Rect.Min.Y)
}

// Recompile rebuilds the scene from its source files and swaps it in.
// The paused flag and editable overrides carry over; on failure the
// previous scene keeps running.
func (i *Instance) Recompile() error {
	w, h := viewport(i.area.Rect)
	scene, err := i.backend.Compile(i.launch.Markup, i.launch.Stylesheet, render.CompileContext{
		Name:     i.launch.Name,
		AssetDir: i.launch.Dir,
		Width:    w,
		Height:   h,
	})
	if err != nil {
		i.log.Warn("recompile failed, keeping previous scene",
			"key", i.key, "asset", i.assetID, "error", err)
		return err
	}

	old := i.scene
	i.scene = scene
	if old != nil {
		old.Close()
	}
	if len(i.editable) > 0 {
		i.scene.SetVariables(i.editable)
		i.scene.InvalidateLayout()
	}
	i.log.Info("scene recompiled", "key", i.key, "asset", i.assetID)
	return nil
}

// Close releases the scene, then the surface, then the window. Safe to
// call more than once.
func (i *Instance) Close() {
	if i.scene != nil {
		i.scene.Close()
		i.scene = nil
	}
	if i.surface != nil {
		i.surface.Close()
		i.surface = nil
	}
	if i.window != hostwin.None {
		i.manager.Destroy(i.window)
		i.window = hostwin.None
	}
}
