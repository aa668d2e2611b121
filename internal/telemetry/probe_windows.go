//go:build windows

// Package telemetry Windows local probes.
//
// Uses GetForegroundWindow, GetClassNameW, window styles, GetLastInputInfo
// and GetSystemPowerStatus to read what the bridge cannot deliver promptly.
package telemetry

import (
	"image"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32                   = syscall.NewLazyDLL("user32.dll")
	kernel32                 = syscall.NewLazyDLL("kernel32.dll")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procGetClassNameW        = user32.NewProc("GetClassNameW")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
	procGetWindowLongW       = user32.NewProc("GetWindowLongW")
	procIsZoomed             = user32.NewProc("IsZoomed")
	procMonitorFromWindow    = user32.NewProc("MonitorFromWindow")
	procGetMonitorInfoW      = user32.NewProc("GetMonitorInfoW")
	procGetCursorPos         = user32.NewProc("GetCursorPos")
	procGetLastInputInfo     = user32.NewProc("GetLastInputInfo")
	procGetTickCount         = kernel32.NewProc("GetTickCount")
	procGetSystemPowerStatus = kernel32.NewProc("GetSystemPowerStatus")
)

const (
	GWL_STYLE     = ^uintptr(15) // -16
	WS_CAPTION    = 0x00C00000
	WS_THICKFRAME = 0x00040000

	MONITOR_DEFAULTTONEAREST = 0x0002
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

type monitorInfo struct {
	CbSize  uint32
	Monitor winRect
	Work    winRect
	Flags   uint32
}

type lastInputInfo struct {
	CbSize uint32
	DwTime uint32
}

type systemPowerStatus struct {
	ACLineStatus        byte
	BatteryFlag         byte
	BatteryLifePercent  byte
	SystemStatusFlag    byte
	BatteryLifeTime     uint32
	BatteryFullLifeTime uint32
}

// Desktop shell window classes that never count as user focus.
var shellClasses = map[string]bool{
	"progman":                 true,
	"workerw":                 true,
	"shell_traywnd":           true,
	"shell_secondarytraywnd":  true,
}

// windowsProber implements Prober for Windows.
type windowsProber struct{}

func newPlatformProber() Prober {
	return windowsProber{}
}

// Foreground reads the current foreground window and its styles.
func (windowsProber) Foreground() Foreground {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return Foreground{Probed: true}
	}

	fg := Foreground{Probed: true, Present: true}
	fg.Class = getClassName(hwnd)
	fg.Shell = shellClasses[toLowerASCII(fg.Class)]
	fg.Title = getWindowText(hwnd)

	var r winRect
	if ret, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ret != 0 {
		fg.Rect = image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom))
	}

	zoomed, _, _ := procIsZoomed.Call(hwnd)
	fg.Maximized = zoomed != 0

	style, _, _ := procGetWindowLongW.Call(hwnd, GWL_STYLE)
	fg.HasChrome = style&(WS_CAPTION|WS_THICKFRAME) != 0

	hmon, _, _ := procMonitorFromWindow.Call(hwnd, MONITOR_DEFAULTTONEAREST)
	if hmon != 0 {
		var info monitorInfo
		info.CbSize = uint32(unsafe.Sizeof(info))
		if ret, _, _ := procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&info))); ret != 0 {
			fg.Monitor = image.Rect(
				int(info.Monitor.Left), int(info.Monitor.Top),
				int(info.Monitor.Right), int(info.Monitor.Bottom),
			)
		}
	}

	return fg
}

// Idle returns the time since the last keyboard/mouse input.
func (windowsProber) Idle() (time.Duration, bool) {
	var info lastInputInfo
	info.CbSize = uint32(unsafe.Sizeof(info))
	if ret, _, _ := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info))); ret == 0 {
		return 0, false
	}
	ticks, _, _ := procGetTickCount.Call()
	// Tick counters wrap at 32 bits; unsigned subtraction stays correct
	// across one wrap.
	elapsed := uint32(ticks) - info.DwTime
	return time.Duration(elapsed) * time.Millisecond, true
}

// OnBattery reports whether the machine runs unplugged.
func (windowsProber) OnBattery() (bool, bool) {
	var status systemPowerStatus
	if ret, _, _ := procGetSystemPowerStatus.Call(uintptr(unsafe.Pointer(&status))); ret == 0 {
		return false, false
	}
	// ACLineStatus: 0 offline, 1 online, 255 unknown.
	return status.ACLineStatus == 0, true
}

// Cursor returns the cursor position in virtual-desktop coordinates.
func (windowsProber) Cursor() (image.Point, bool) {
	var pt winPoint
	if ret, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); ret == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(pt.X), int(pt.Y)), true
}

// getClassName retrieves the class name of a window.
func getClassName(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

// getWindowText retrieves the title of a window.
func getWindowText(hwnd uintptr) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// Ensure windowsProber implements Prober
var _ Prober = windowsProber{}
