//go:build windows

package snapshot

import (
	"errors"
	"fmt"
	"image"
	"syscall"
	"unsafe"

	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")
	gdi32  = syscall.NewLazyDLL("gdi32.dll")

	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procPrintWindow            = user32.NewProc("PrintWindow")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
)

const (
	pwRenderFullContent = 0x0002
	srcCopy             = 0x00CC0020
	biRGB               = 0
	dibRGBColors        = 0
)

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// gdiCapturer reads window contents back through GDI.
type gdiCapturer struct{}

// NewCapturer returns the native window capturer.
func NewCapturer() Capturer {
	return gdiCapturer{}
}

// Capture asks the window to paint itself into a memory bitmap and
// copies the pixels out as top-down 32-bit rows.
func (gdiCapturer) Capture(win hostwin.Window, rect image.Rectangle) (Frame, error) {
	width, height := rect.Dx(), rect.Dy()
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("degenerate capture rect %v", rect)
	}

	winDC, _, _ := procGetDC.Call(uintptr(win))
	if winDC == 0 {
		return Frame{}, fmt.Errorf("GetDC failed for window %#x", uintptr(win))
	}
	defer procReleaseDC.Call(uintptr(win), winDC)

	memDC, _, _ := procCreateCompatibleDC.Call(winDC)
	if memDC == 0 {
		return Frame{}, errors.New("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(memDC)

	bitmap, _, _ := procCreateCompatibleBitmap.Call(winDC, uintptr(width), uintptr(height))
	if bitmap == 0 {
		return Frame{}, errors.New("CreateCompatibleBitmap failed")
	}
	defer procDeleteObject.Call(bitmap)

	prev, _, _ := procSelectObject.Call(memDC, bitmap)
	if prev == 0 {
		return Frame{}, errors.New("SelectObject failed")
	}

	// PrintWindow reaches content BitBlt cannot: windows covered by
	// siblings or composited offscreen. Renderers that ignore
	// WM_PRINT leave the bitmap untouched and report failure, so the
	// screen copy is the fallback.
	ok, _, _ := procPrintWindow.Call(uintptr(win), memDC, pwRenderFullContent)
	if ok == 0 {
		blt, _, _ := procBitBlt.Call(memDC, 0, 0, uintptr(width), uintptr(height),
			winDC, 0, 0, srcCopy)
		if blt == 0 {
			procSelectObject.Call(memDC, prev)
			return Frame{}, errors.New("PrintWindow and BitBlt both failed")
		}
	}

	// GetDIBits wants the bitmap deselected.
	procSelectObject.Call(memDC, prev)

	hdr := bitmapInfoHeader{
		Size:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		Width:       int32(width),
		Height:      -int32(height), // negative height selects top-down rows
		Planes:      1,
		BitCount:    32,
		Compression: biRGB,
	}
	pix := make([]byte, width*height*4)
	lines, _, _ := procGetDIBits.Call(
		memDC,
		bitmap,
		0,
		uintptr(height),
		uintptr(unsafe.Pointer(&pix[0])),
		uintptr(unsafe.Pointer(&hdr)),
		dibRGBColors,
	)
	if int(lines) != height {
		return Frame{}, fmt.Errorf("GetDIBits copied %d of %d rows", lines, height)
	}

	return Frame{Rect: rect, Pix: pix}, nil
}
