// Package snapshot persists crash-recovery images of the live
// wallpaper.
//
// Capture runs on the engine's tick goroutine and stays cheap: one raw
// 32-bit pixel readback per hosted window. Stitching the buffers into a
// virtual-desktop canvas and encoding BMP is slow, so jobs cross into a
// worker goroutine through a depth-1 mailbox where a newer job replaces
// a pending one. The persisted file doubles as the static OS wallpaper
// while the engine is paused and after it exits, so the desktop never
// falls back to a stale or black background.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"strings"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/hostwin"
)

// Frame is one captured pixel buffer.
type Frame struct {
	// Rect places the pixels in virtual-desktop coordinates.
	Rect image.Rectangle

	// Pix holds top-down rows of 4-byte BGRX pixels, the layout
	// GetDIBits produces. Length must be Rect.Dx()*Rect.Dy()*4.
	Pix []byte
}

// Target names one live window to capture.
type Target struct {
	Window hostwin.Window
	Rect   image.Rectangle
}

// Job is one stitch-and-persist request.
type Job struct {
	// Profile names the stitched image and keys the output filename.
	// Distinct topologies must use distinct names so their files do not
	// overwrite each other.
	Profile string

	// Topology is the monitor layout signature at capture time.
	Topology string

	Frames []Frame

	// Apply additionally sets the written file as the OS wallpaper.
	Apply bool

	// Reason is recorded with an apply: boot, pause, refresh or
	// shutdown.
	Reason string

	// Taken is the capture time. Zero means now.
	Taken time.Time
}

// Capturer reads back the pixels of a hosted window.
type Capturer interface {
	Capture(win hostwin.Window, rect image.Rectangle) (Frame, error)
}

// Applier sets an image file as the system wallpaper.
type Applier interface {
	Apply(path string) error
}

// CaptureAll captures every target it can. A window mid-teardown fails
// its readback or returns black; a failure drops that frame rather
// than the whole job.
func CaptureAll(c Capturer, targets []Target) []Frame {
	frames := make([]Frame, 0, len(targets))
	for _, t := range targets {
		f, err := c.Capture(t.Window, t.Rect)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// maxNameLen bounds the sanitized profile part of a snapshot filename.
const maxNameLen = 120

// fileName maps a profile name onto a stable BMP filename. Profile
// names come straight from user config section headers, so anything
// outside a safe character set becomes an underscore and absurdly long
// names collapse to a hash.
func fileName(profile string) string {
	s := sanitizeProfile(profile)
	if len(s) > maxNameLen {
		sum := sha256.Sum256([]byte(profile))
		s = hex.EncodeToString(sum[:16])
	}
	return s + ".bmp"
}

func sanitizeProfile(profile string) string {
	var b strings.Builder
	b.Grow(len(profile))
	for _, r := range profile {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "wallpaper"
	}
	return b.String()
}
