//go:build windows

package snapshot

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows/registry"
)

const (
	spiSetDeskWallpaper = 0x0014
	spifUpdateIniFile   = 0x0001
	spifSendChange      = 0x0002
)

var procSystemParametersInfoW = user32.NewProc("SystemParametersInfoW")

// desktopApplier points the desktop at a file through the shell.
type desktopApplier struct{}

// NewApplier returns the native wallpaper applier.
func NewApplier() Applier {
	return desktopApplier{}
}

// Apply sets path as the desktop wallpaper and persists it to the user
// profile so it survives the process.
func (desktopApplier) Apply(path string) error {
	if err := setWallpaperStyle(); err != nil {
		return err
	}

	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("encode wallpaper path: %w", err)
	}
	ok, _, callErr := procSystemParametersInfoW.Call(
		spiSetDeskWallpaper,
		0,
		uintptr(unsafe.Pointer(p)),
		spifUpdateIniFile|spifSendChange,
	)
	if ok == 0 {
		return fmt.Errorf("SystemParametersInfoW: %w", callErr)
	}
	return nil
}

// setWallpaperStyle selects fill scaling without tiling. The stitched
// canvas already matches the virtual screen, so fill pins it 1:1.
func setWallpaperStyle() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, `Control Panel\Desktop`, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open desktop registry key: %w", err)
	}
	defer key.Close()

	if err := key.SetStringValue("WallpaperStyle", "10"); err != nil {
		return fmt.Errorf("set wallpaper style: %w", err)
	}
	if err := key.SetStringValue("TileWallpaper", "0"); err != nil {
		return fmt.Errorf("set wallpaper tiling: %w", err)
	}
	return nil
}
