package monitor

import (
	"image"
	"testing"
)

func area(x, y, w, h int, primary bool) Area {
	return Area{Primary: primary, Rect: image.Rect(x, y, x+w, y+h)}
}

func TestNormalizeReadingOrder(t *testing.T) {
	// Two rows: 2+1 and 1x ultrawide below, supplied shuffled.
	in := []Area{
		area(0, 1100, 3440, 1440, false),
		area(1920, 0, 1920, 1080, false),
		area(0, 0, 1920, 1080, true),
	}

	out := Normalize(in)

	if len(out) != 3 {
		t.Fatalf("expected 3 areas, got %d", len(out))
	}
	if out[0].Rect.Min != image.Pt(0, 0) || !out[0].Primary {
		t.Errorf("index 0 should be the top-left primary, got %+v", out[0])
	}
	if out[1].Rect.Min != image.Pt(1920, 0) {
		t.Errorf("index 1 should be the top-right monitor, got %+v", out[1])
	}
	if out[2].Rect.Min != image.Pt(0, 1100) {
		t.Errorf("index 2 should be the bottom monitor, got %+v", out[2])
	}
	for i, a := range out {
		if a.Index != i {
			t.Errorf("index not reassigned at %d: %+v", i, a)
		}
	}
}

func TestNormalizeRowTolerance(t *testing.T) {
	// Tops differ by 100px; min height 1080 gives tolerance 270, so both
	// land in one row ordered left-to-right.
	in := []Area{
		area(1920, 100, 1920, 1080, false),
		area(0, 0, 1920, 1200, true),
	}

	out := Normalize(in)
	if out[0].Rect.Min.X != 0 || out[1].Rect.Min.X != 1920 {
		t.Errorf("misaligned monitors should form one left-to-right row, got %+v", out)
	}

	// Tops differ by 500px: separate rows, top one first.
	in = []Area{
		area(0, 500, 1920, 1080, false),
		area(0, 0, 1920, 1080, true),
	}
	out = Normalize(in)
	if out[0].Rect.Min.Y != 0 || out[1].Rect.Min.Y != 500 {
		t.Errorf("expected two rows top-to-bottom, got %+v", out)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := []Area{
		area(1920, 0, 1920, 1080, false),
		area(0, 0, 1920, 1080, true),
		area(-1920, 0, 1920, 1080, false),
	}

	first := Normalize(in)
	second := Normalize(first)

	if len(first) != len(second) {
		t.Fatalf("length changed across runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("normalization not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].Rect.Min.X != -1920 {
		t.Errorf("leftmost monitor should be index 0, got %+v", first[0])
	}
}

func TestChanged(t *testing.T) {
	base := Normalize([]Area{
		area(0, 0, 1920, 1080, true),
		area(1920, 0, 1920, 1080, false),
	})

	same := Normalize([]Area{
		area(1920, 0, 1920, 1080, false),
		area(0, 0, 1920, 1080, true),
	})
	if Changed(base, same) {
		t.Error("identical layout reported as changed")
	}

	moved := Normalize([]Area{
		area(0, 0, 1920, 1080, true),
		area(1920, 200, 1920, 1080, false),
	})
	if !Changed(base, moved) {
		t.Error("moved monitor not reported as changed")
	}

	removed := Normalize([]Area{area(0, 0, 1920, 1080, true)})
	if !Changed(base, removed) {
		t.Error("removed monitor not reported as changed")
	}
}

func TestSignature(t *testing.T) {
	a := Normalize([]Area{
		area(0, 0, 1920, 1080, true),
		area(1920, 0, 1920, 1080, false),
	})
	b := Normalize([]Area{
		area(1920, 0, 1920, 1080, false),
		area(0, 0, 1920, 1080, true),
	})

	if Signature(a) != Signature(b) {
		t.Error("signature should not depend on enumeration order")
	}
	if Signature(a) == Signature(a[:1]) {
		t.Error("different layouts should not share a signature")
	}
}

func TestUnionAndPrimary(t *testing.T) {
	areas := Normalize([]Area{
		area(0, 0, 100, 100, false),
		area(100, 0, 100, 100, true),
	})

	box := Union(areas)
	if box != image.Rect(0, 0, 200, 100) {
		t.Errorf("unexpected union box: %v", box)
	}

	p, ok := Primary(areas)
	if !ok || p.Rect.Min.X != 100 {
		t.Errorf("unexpected primary: %+v ok=%v", p, ok)
	}

	if _, ok := Primary(nil); ok {
		t.Error("empty topology should have no primary")
	}
}
