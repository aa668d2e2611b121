//go:build windows

package hostwin

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"
)

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procFindWindowW         = user32.NewProc("FindWindowW")
	procFindWindowExW       = user32.NewProc("FindWindowExW")
	procSendMessageTimeoutW = user32.NewProc("SendMessageTimeoutW")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procRegisterClassW      = user32.NewProc("RegisterClassW")
	procDefWindowProcW      = user32.NewProc("DefWindowProcW")
	procCreateWindowExW     = user32.NewProc("CreateWindowExW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procGetWindowLongW      = user32.NewProc("GetWindowLongW")
	procSetWindowLongW      = user32.NewProc("SetWindowLongW")
	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procShowWindow          = user32.NewProc("ShowWindow")
	procPeekMessageW        = user32.NewProc("PeekMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")
)

const hostClassName = "SentinelWallpaperHostWindow"

// spawnWorkerWMsg is the undocumented Progman message that splits the
// desktop into icon list + WorkerW background window.
const spawnWorkerWMsg = 0x052C

const (
	wsChild        = 0x40000000
	wsVisible      = 0x10000000
	wsClipSiblings = 0x04000000
	wsClipChildren = 0x02000000
	wsCaption      = 0x00C00000
	wsThickFrame   = 0x00040000
	wsMinimizeBox  = 0x00020000
	wsMaximizeBox  = 0x00010000
	wsSysMenu      = 0x00080000

	wsExToolWindow    = 0x00000080
	wsExNoActivate    = 0x08000000
	wsExAppWindow     = 0x00040000
	wsExWindowEdge    = 0x00000100
	wsExDlgModalFrame = 0x00000001

	// GWL_STYLE / GWL_EXSTYLE, kept as their 32-bit two's complement
	// since the callee reads only the low dword.
	gwlStyle   = 0xFFFFFFF0 // -16
	gwlExStyle = 0xFFFFFFEC // -20

	swpNoSize       = 0x0001
	swpNoMove       = 0x0002
	swpNoActivate   = 0x0010
	swpFrameChanged = 0x0020
	swpShowWindow   = 0x0040

	swHide   = 0
	swShowNA = 8

	smtoNormal = 0x0000
	pmRemove   = 0x0001
	wmQuit     = 0x0012
)

const (
	hwndTop       = uintptr(0)
	hwndBottom    = uintptr(1)
	hwndTopmost   = ^uintptr(0) // -1
	hwndNoTopmost = ^uintptr(1) // -2
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

type winMsg struct {
	HWnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      winPoint
}

type wndClass struct {
	Style        uint32
	WndProc      uintptr
	ClsExtra     int32
	WndExtra     int32
	Instance     uintptr
	Icon         uintptr
	Cursor       uintptr
	Background   uintptr
	MenuName     *uint16
	ClassNamePtr *uint16
}

// Callback state for the DefView search. NewCallback allocations are
// never released, so the callbacks are created once and shared under a
// lock.
var (
	enumMu    sync.Mutex
	enumFound uintptr
	enumOnce  sync.Once
	enumCb    uintptr

	wndProcOnce sync.Once
	wndProcCb   uintptr
)

func hostWndProc() uintptr {
	wndProcOnce.Do(func() {
		wndProcCb = syscall.NewCallback(func(hwnd, msg, wparam, lparam uintptr) uintptr {
			r, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
			return r
		})
	})
	return wndProcCb
}

func defViewEnumProc(hwnd, lparam uintptr) uintptr {
	if findWindowEx(hwnd, 0, "SHELLDLL_DefView") != 0 {
		enumFound = hwnd
		return 0
	}
	return 1
}

// defViewHost finds the top-level window currently holding the desktop
// icon list. After the 0x052C poke that is usually a WorkerW, on older
// shells Progman itself.
func defViewHost() uintptr {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumOnce.Do(func() { enumCb = syscall.NewCallback(defViewEnumProc) })
	enumFound = 0
	procEnumWindows.Call(enumCb, 0)
	return enumFound
}

func findWindow(class string) uintptr {
	p, err := syscall.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	h, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(p)), 0)
	return h
}

func findWindowEx(parent, after uintptr, class string) uintptr {
	p, err := syscall.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	h, _, _ := procFindWindowExW.Call(parent, after, uintptr(unsafe.Pointer(p)), 0)
	return h
}

func windowRect(hwnd uintptr) (image.Rectangle, bool) {
	var r winRect
	ret, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), true
}

// winManager hosts children in the WorkerW chain.
type winManager struct {
	classOnce sync.Once
	classErr  error
}

// New returns the native desktop window manager.
func New() Manager {
	return &winManager{}
}

// EnsureHost walks the Progman/WorkerW chain, poking Progman first so
// the WorkerW exists. Preference order: the WorkerW sibling right after
// the icon list, any WorkerW under Progman, the icon list holder itself,
// finally Progman.
func (m *winManager) EnsureHost() (Window, error) {
	progman := findWindow("Progman")
	if progman == 0 {
		return None, errors.New("Progman window not found")
	}

	var result uintptr
	procSendMessageTimeoutW.Call(progman, spawnWorkerWMsg, 0, 0,
		smtoNormal, 1000, uintptr(unsafe.Pointer(&result)))

	if host := defViewHost(); host != 0 {
		if worker := findWindowEx(0, host, "WorkerW"); worker != 0 {
			return Window(worker), nil
		}
		if worker := findWindowEx(progman, 0, "WorkerW"); worker != 0 {
			return Window(worker), nil
		}
		return Window(host), nil
	}

	if worker := findWindowEx(progman, 0, "WorkerW"); worker != 0 {
		return Window(worker), nil
	}
	return Window(progman), nil
}

func (m *winManager) ensureClass() error {
	m.classOnce.Do(func() {
		className, err := syscall.UTF16PtrFromString(hostClassName)
		if err != nil {
			m.classErr = err
			return
		}
		hinst, _, _ := procGetModuleHandleW.Call(0)
		wc := wndClass{
			WndProc:      hostWndProc(),
			Instance:     hinst,
			ClassNamePtr: className,
		}
		// Registration fails harmlessly when the class already exists;
		// window creation surfaces real problems.
		procRegisterClassW.Call(uintptr(unsafe.Pointer(&wc)))
	})
	return m.classErr
}

func (m *winManager) CreateChild(host Window, rect image.Rectangle) (Window, error) {
	if err := m.ensureClass(); err != nil {
		return None, err
	}
	parentRect, ok := windowRect(uintptr(host))
	if !ok {
		return None, errors.New("read host window rect")
	}

	// Child coordinates are relative to the host's client origin.
	x := rect.Min.X - parentRect.Min.X
	y := rect.Min.Y - parentRect.Min.Y

	className, err := syscall.UTF16PtrFromString(hostClassName)
	if err != nil {
		return None, err
	}
	hinst, _, _ := procGetModuleHandleW.Call(0)

	hwnd, _, callErr := procCreateWindowExW.Call(
		wsExToolWindow|wsExNoActivate,
		uintptr(unsafe.Pointer(className)),
		0,
		wsChild|wsVisible|wsClipSiblings|wsClipChildren,
		uintptr(x), uintptr(y), uintptr(rect.Dx()), uintptr(rect.Dy()),
		uintptr(host), 0, hinst, 0,
	)
	if hwnd == 0 {
		return None, fmt.Errorf("CreateWindowExW: %w", callErr)
	}
	return Window(hwnd), nil
}

func (m *winManager) ApplyStyle(w Window, z ZOrder) error {
	hwnd := uintptr(w)

	style, _, _ := procGetWindowLongW.Call(hwnd, gwlStyle)
	style = style&^uintptr(wsCaption|wsThickFrame|wsMinimizeBox|wsMaximizeBox|wsSysMenu) |
		wsVisible | wsChild
	procSetWindowLongW.Call(hwnd, gwlStyle, style)

	ex, _, _ := procGetWindowLongW.Call(hwnd, gwlExStyle)
	ex = ex&^uintptr(wsExAppWindow|wsExWindowEdge|wsExDlgModalFrame) |
		wsExToolWindow | wsExNoActivate
	procSetWindowLongW.Call(hwnd, gwlExStyle, ex)

	ret, _, err := procSetWindowPos.Call(hwnd, insertAfter(z), 0, 0, 0, 0,
		swpNoMove|swpNoSize|swpNoActivate|swpShowWindow|swpFrameChanged)
	if ret == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

func insertAfter(z ZOrder) uintptr {
	switch z {
	case ZNormal:
		return hwndNoTopmost
	case ZTop:
		return hwndTop
	case ZTopmost:
		return hwndTopmost
	}
	// ZDesktop and ZBottom both pin to the bottom of the host chain.
	return hwndBottom
}

func (m *winManager) SetVisible(w Window, visible bool) {
	cmd := uintptr(swHide)
	if visible {
		cmd = swShowNA
	}
	procShowWindow.Call(uintptr(w), cmd)
}

func (m *winManager) Destroy(w Window) {
	if w != None {
		procDestroyWindow.Call(uintptr(w))
	}
}

func (m *winManager) Pump() bool {
	var msg winMsg
	for {
		ret, _, _ := procPeekMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0, pmRemove)
		if ret == 0 {
			return false
		}
		if msg.Message == wmQuit {
			return true
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}
