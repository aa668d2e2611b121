//go:build windows

// Package monitor Windows display enumeration.
//
// Uses EnumDisplayMonitors and GetMonitorInfoW to read the virtual-desktop
// geometry of every attached display.
package monitor

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"
)

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
)

const MONITORINFOF_PRIMARY = 0x0001

type winRect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	CbSize   uint32
	Monitor  winRect
	Work     winRect
	Flags    uint32
	SzDevice [32]uint16
}

// Enumeration state shared with the Win32 callback. NewCallback allocations
// are never released, so one callback is created and reused under a lock.
var (
	enumMu    sync.Mutex
	enumAreas []Area
	enumOnce  sync.Once
	enumCb    uintptr
)

func monitorEnumProc(hMonitor, hdc, lprcMonitor, lparam uintptr) uintptr {
	var info monitorInfoEx
	info.CbSize = uint32(unsafe.Sizeof(info))

	ret, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 1 // skip this display, keep enumerating
	}

	enumAreas = append(enumAreas, Area{
		Primary: info.Flags&MONITORINFOF_PRIMARY != 0,
		Rect: image.Rect(
			int(info.Monitor.Left), int(info.Monitor.Top),
			int(info.Monitor.Right), int(info.Monitor.Bottom),
		),
		Device: syscall.UTF16ToString(info.SzDevice[:]),
	})
	return 1
}

// systemEnumerator reads displays through the Win32 API.
type systemEnumerator struct{}

// SystemEnumerator returns the native display enumerator.
func SystemEnumerator() Enumerator {
	return systemEnumerator{}
}

// Enumerate lists all attached displays in normalized order.
func (systemEnumerator) Enumerate() ([]Area, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumOnce.Do(func() {
		enumCb = syscall.NewCallback(monitorEnumProc)
	})

	enumAreas = enumAreas[:0]
	ret, _, err := procEnumDisplayMonitors.Call(0, 0, enumCb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("EnumDisplayMonitors: %w", err)
	}
	if len(enumAreas) == 0 {
		return nil, ErrNoMonitors
	}
	return Normalize(enumAreas), nil
}

// Ensure systemEnumerator implements Enumerator
var _ Enumerator = systemEnumerator{}
