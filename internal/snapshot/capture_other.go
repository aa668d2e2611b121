//go:build !windows

package snapshot

import (
	"fmt"
	"image"

	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
	"github.com/kbinani/screenshot"
)

// screenCapturer grabs monitor rects from the framebuffer. Window
// handles are stub values off Windows, so the target rect stands in
// for the window.
type screenCapturer struct{}

// NewCapturer returns the native capturer.
func NewCapturer() Capturer {
	return screenCapturer{}
}

func (screenCapturer) Capture(_ hostwin.Window, rect image.Rectangle) (Frame, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return Frame{}, fmt.Errorf("capture screen rect: %w", err)
	}

	w, h := rect.Dx(), rect.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := pix[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			dst[x] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x]
			dst[x+3] = src[x+3]
		}
	}
	return Frame{Rect: rect, Pix: pix}, nil
}
