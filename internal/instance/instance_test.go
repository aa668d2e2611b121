package instance

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/assets"
	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
	"github.com/The-Ico2/sentinel-wallpaper/internal/render"
)

type fakeScene struct {
	ticks       int
	lastW       int
	lastH       int
	lastDt      time.Duration
	data        map[string]string
	vars        map[string]string
	invalidated int
	pointer     image.Point
	closed      bool
	order       *[]string
}

func (s *fakeScene) Tick(w, h int, dt time.Duration) render.DrawList {
	s.ticks++
	s.lastW, s.lastH, s.lastDt = w, h, dt
	return s
}
func (s *fakeScene) UpdateData(data map[string]string) { s.data = data }
func (s *fakeScene) SetVariables(vars map[string]string) {
	s.vars = vars
}
func (s *fakeScene) InvalidateLayout() { s.invalidated++ }
func (s *fakeScene) PointerMoved(x, y int) {
	s.pointer = image.Pt(x, y)
}
func (s *fakeScene) Close() {
	s.closed = true
	if s.order != nil {
		*s.order = append(*s.order, "scene")
	}
}

type fakeSurface struct {
	submits    int
	submitErrs []error
	resizes    []image.Point
	closed     bool
	order      *[]string
}

func (s *fakeSurface) Submit(render.DrawList) error {
	s.submits++
	if len(s.submitErrs) == 0 {
		return nil
	}
	err := s.submitErrs[0]
	s.submitErrs = s.submitErrs[1:]
	return err
}
func (s *fakeSurface) Resize(w, h int) { s.resizes = append(s.resizes, image.Pt(w, h)) }
func (s *fakeSurface) Close() {
	s.closed = true
	if s.order != nil {
		*s.order = append(*s.order, "surface")
	}
}

type fakeBackend struct {
	compiles   int
	compileErr error
	surfaceErr error
	lastCtx    render.CompileContext
	scenes     []*fakeScene
	surfaces   []*fakeSurface
	order      *[]string
}

func (b *fakeBackend) Compile(markup, stylesheet string, ctx render.CompileContext) (render.Scene, error) {
	b.compiles++
	b.lastCtx = ctx
	if b.compileErr != nil {
		return nil, b.compileErr
	}
	s := &fakeScene{order: b.order}
	b.scenes = append(b.scenes, s)
	return s, nil
}

func (b *fakeBackend) CreateSurface(window uintptr, w, h int) (render.Surface, error) {
	if b.surfaceErr != nil {
		return nil, b.surfaceErr
	}
	s := &fakeSurface{order: b.order}
	b.surfaces = append(b.surfaces, s)
	return s, nil
}

// orderManager wraps the stub so window destruction lands in the shared
// teardown order log.
type orderManager struct {
	*hostwin.Stub
	order *[]string
}

func (m *orderManager) Destroy(w hostwin.Window) {
	*m.order = append(*m.order, "window")
	m.Stub.Destroy(w)
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

func testOptions(t *testing.T, mgr hostwin.Manager, backend render.Backend) Options {
	t.Helper()
	return Options{
		Key:     "wallpaper:0",
		AssetID: "aurora",
		Launch: assets.LaunchSpec{
			Kind:       assets.LaunchMarkup,
			Markup:     "/assets/aurora/index.html",
			Stylesheet: "/assets/aurora/style.css",
			Dir:        "/assets/aurora",
			Name:       "aurora",
		},
		Area:     monitor.Area{Index: 0, Primary: true, Rect: image.Rect(100, 50, 2020, 1130)},
		ZOrder:   hostwin.ZDesktop,
		Manager:  mgr,
		Backend:  backend,
		Log:      testLogger(t),
	}
}

func TestLaunchHostsWindowSurfaceScene(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}

	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	if len(stub.Created) != 1 {
		t.Fatalf("created %d windows, want 1", len(stub.Created))
	}
	win := stub.Created[0]
	if want := image.Rect(100, 50, 2020, 1130); win.Rect != want {
		t.Errorf("window rect = %v, want %v", win.Rect, want)
	}
	if win.Z != hostwin.ZDesktop {
		t.Errorf("window z = %v, want %v", win.Z, hostwin.ZDesktop)
	}
	if backend.lastCtx.Width != 1920 || backend.lastCtx.Height != 1080 {
		t.Errorf("compile viewport = %dx%d, want 1920x1080",
			backend.lastCtx.Width, backend.lastCtx.Height)
	}
	if backend.lastCtx.AssetDir != "/assets/aurora" {
		t.Errorf("compile asset dir = %q", backend.lastCtx.AssetDir)
	}
	if inst.AssetDir() != "/assets/aurora" {
		t.Errorf("AssetDir = %q", inst.AssetDir())
	}
}

func TestLaunchHostFailure(t *testing.T) {
	stub := hostwin.NewStub()
	stub.FailHost = true

	if _, err := Launch(testOptions(t, stub, &fakeBackend{})); err == nil {
		t.Fatal("Launch succeeded without a desktop host")
	}
}

func TestLaunchSurfaceFailureDestroysWindow(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{surfaceErr: errors.New("no adapter")}

	if _, err := Launch(testOptions(t, stub, backend)); err == nil {
		t.Fatal("Launch succeeded with surface creation failing")
	}
	if live := stub.Live(); len(live) != 0 {
		t.Errorf("window leaked after surface failure: %v", live)
	}
}

func TestLaunchCompileFailureCleansUp(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{compileErr: errors.New("bad markup")}

	if _, err := Launch(testOptions(t, stub, backend)); err == nil {
		t.Fatal("Launch succeeded with compile failing")
	}
	if live := stub.Live(); len(live) != 0 {
		t.Errorf("window leaked after compile failure: %v", live)
	}
	if len(backend.surfaces) != 1 || !backend.surfaces[0].closed {
		t.Error("surface not closed after compile failure")
	}
}

func TestRenderFrameClampsDelta(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	inst.lastFrame = time.Now().Add(-time.Hour)
	if !inst.RenderFrame() {
		t.Fatal("frame not submitted")
	}

	scene := backend.scenes[0]
	if scene.ticks != 1 {
		t.Fatalf("ticks = %d, want 1", scene.ticks)
	}
	if scene.lastDt != maxFrameDelta {
		t.Errorf("dt = %v, want clamp at %v", scene.lastDt, maxFrameDelta)
	}
	if scene.lastW != 1920 || scene.lastH != 1080 {
		t.Errorf("viewport = %dx%d, want 1920x1080", scene.lastW, scene.lastH)
	}
	if backend.surfaces[0].submits != 1 {
		t.Errorf("submits = %d, want 1", backend.surfaces[0].submits)
	}
}

func TestRenderFrameRecoversLostSurface(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	surface := backend.surfaces[0]
	surface.submitErrs = []error{render.ErrSurfaceLost, render.ErrSurfaceOutdated}

	if inst.RenderFrame() {
		t.Error("lost surface counted as a submitted frame")
	}
	if inst.RenderFrame() {
		t.Error("outdated surface counted as a submitted frame")
	}
	if !inst.RenderFrame() {
		t.Error("frame not submitted after surface recovery")
	}

	if inst.Failed() {
		t.Fatal("lost surface marked instance failed")
	}
	want := []image.Point{image.Pt(1920, 1080), image.Pt(1920, 1080)}
	if len(surface.resizes) != len(want) {
		t.Fatalf("resizes = %v, want %v", surface.resizes, want)
	}
	for i := range want {
		if surface.resizes[i] != want[i] {
			t.Errorf("resize[%d] = %v, want %v", i, surface.resizes[i], want[i])
		}
	}
	if surface.submits != 3 {
		t.Errorf("submits = %d, want 3", surface.submits)
	}
}

func TestRenderFrameOutOfMemoryDisablesInstance(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	backend.surfaces[0].submitErrs = []error{render.ErrOutOfMemory}
	if inst.RenderFrame() {
		t.Error("out of memory counted as a submitted frame")
	}

	if !inst.Failed() {
		t.Fatal("out of memory did not mark instance failed")
	}

	ticksBefore := backend.scenes[0].ticks
	if inst.RenderFrame() {
		t.Error("failed instance reported a submitted frame")
	}
	if backend.scenes[0].ticks != ticksBefore {
		t.Error("failed instance still ticks")
	}
}

func TestRenderFrameDropsOnOtherErrors(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	surface := backend.surfaces[0]
	surface.submitErrs = []error{errors.New("transient device glitch")}
	if inst.RenderFrame() {
		t.Error("dropped frame reported as submitted")
	}

	if inst.Failed() {
		t.Error("transient error marked instance failed")
	}
	if len(surface.resizes) != 0 {
		t.Errorf("transient error triggered resize: %v", surface.resizes)
	}
}

func TestRecompileSwapsSceneAndKeepsOverrides(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	vars := map[string]string{"--accent": "#00ccff"}
	inst.ApplyEditable(vars)
	inst.SetPaused(true)

	if err := inst.Recompile(); err != nil {
		t.Fatalf("Recompile: %v", err)
	}

	if len(backend.scenes) != 2 {
		t.Fatalf("compiled %d scenes, want 2", len(backend.scenes))
	}
	if !backend.scenes[0].closed {
		t.Error("old scene left open after swap")
	}
	next := backend.scenes[1]
	if next.vars["--accent"] != "#00ccff" {
		t.Errorf("overrides not reapplied: %v", next.vars)
	}
	if next.invalidated == 0 {
		t.Error("layout not invalidated after override reapply")
	}
	if !inst.Paused() {
		t.Error("paused flag lost across recompile")
	}
}

func TestRecompileFailureKeepsScene(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	backend.compileErr = errors.New("syntax error")
	if err := inst.Recompile(); err == nil {
		t.Fatal("Recompile succeeded with compile failing")
	}

	if backend.scenes[0].closed {
		t.Error("previous scene closed on failed recompile")
	}
	inst.RenderFrame()
	if backend.scenes[0].ticks != 1 {
		t.Error("previous scene no longer rendering")
	}
}

func TestPointerMapsToLocalCoordinates(t *testing.T) {
	stub := hostwin.NewStub()
	backend := &fakeBackend{}
	inst, err := Launch(testOptions(t, stub, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer inst.Close()

	inst.Pointer(image.Pt(150, 75))
	if got, want := backend.scenes[0].pointer, image.Pt(50, 25); got != want {
		t.Errorf("pointer = %v, want %v", got, want)
	}
}

func TestCloseReleasesInOrder(t *testing.T) {
	var order []string
	stub := hostwin.NewStub()
	mgr := &orderManager{Stub: stub, order: &order}
	backend := &fakeBackend{order: &order}

	inst, err := Launch(testOptions(t, mgr, backend))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	inst.Close()
	want := []string{"scene", "surface", "window"}
	if len(order) != len(want) {
		t.Fatalf("teardown order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("teardown order = %v, want %v", order, want)
		}
	}

	inst.Close()
	if len(order) != len(want) {
		t.Errorf("second Close released again: %v", order)
	}
}
