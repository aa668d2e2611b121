package render

import "time"

// Noop returns a backend that compiles every source into an empty scene
// and accepts every submit. It stands in when no GPU backend is linked,
// keeping the hosting engine runnable headless: windows are still
// embedded, paused, and snapshotted, they just present nothing.
func Noop() Backend {
	return noopBackend{}
}

type noopBackend struct{}

func (noopBackend) Compile(markupPath, stylesheetPath string, ctx CompileContext) (Scene, error) {
	return &noopScene{}, nil
}

func (noopBackend) CreateSurface(window uintptr, width, height int) (Surface, error) {
	return noopSurface{}, nil
}

type noopScene struct{}

func (*noopScene) Tick(width, height int, dt time.Duration) DrawList { return nil }
func (*noopScene) UpdateData(data map[string]string)                 {}
func (*noopScene) SetVariables(vars map[string]string)               {}
func (*noopScene) InvalidateLayout()                                 {}
func (*noopScene) PointerMoved(x, y int)                             {}
func (*noopScene) Close()                                            {}

type noopSurface struct{}

func (noopSurface) Submit(list DrawList) error  { return nil }
func (noopSurface) Resize(width, height int)    {}
func (noopSurface) Close()                      {}
