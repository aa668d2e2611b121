package snapshot

import (
	"image"
	"image/draw"
)

// stitch composites captured frames onto one canvas covering their
// union box. The second return reports whether any non-black pixel
// landed: an all-black canvas means the windows were already torn down
// when capture ran, and writing it would destroy a good snapshot.
func stitch(frames []Frame) (*image.RGBA, bool) {
	var union image.Rectangle
	kept := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.Rect.Empty() || len(f.Pix) < f.Rect.Dx()*f.Rect.Dy()*4 {
			continue
		}
		kept = append(kept, f)
		union = union.Union(f.Rect)
	}
	if len(kept) == 0 {
		return nil, false
	}

	canvas := image.NewRGBA(image.Rect(0, 0, union.Dx(), union.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	live := false
	for _, f := range kept {
		off := f.Rect.Min.Sub(union.Min)
		w, h := f.Rect.Dx(), f.Rect.Dy()
		for y := 0; y < h; y++ {
			src := f.Pix[y*w*4 : (y+1)*w*4]
			dst := canvas.Pix[canvas.PixOffset(off.X, off.Y+y):]
			for x := 0; x < w*4; x += 4 {
				b, g, r := src[x], src[x+1], src[x+2]
				dst[x] = r
				dst[x+1] = g
				dst[x+2] = b
				dst[x+3] = 0xFF
				if b|g|r != 0 {
					live = true
				}
			}
		}
	}
	return canvas, live
}
