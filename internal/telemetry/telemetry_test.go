package telemetry

import (
	"image"
	"testing"
)

func TestParseWindowState(t *testing.T) {
	tests := []struct {
		input      string
		maximized  bool
		fullscreen bool
	}{
		{"normal", false, false},
		{"", false, false},
		{"Maximized", true, false},
		{"maximised", true, false},
		{"maximized (borderless)", true, false},
		{"fullscreen", false, true},
		{"Full Screen", false, true},
		{"maximized fullscreen", true, true},
		{"minimized", false, false},
		{"garbage", false, false},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			maximized, fullscreen := ParseWindowState(test.input)
			if maximized != test.maximized || fullscreen != test.fullscreen {
				t.Errorf("ParseWindowState(%q) = %v, %v; want %v, %v",
					test.input, maximized, fullscreen, test.maximized, test.fullscreen)
			}
		})
	}
}

func TestMonitorIDForOverlap(t *testing.T) {
	displays := []DisplayInfo{
		{ID: "mon-a", Rect: image.Rect(0, 0, 1920, 1080)},
		{ID: "mon-b", Rect: image.Rect(1920, 0, 3840, 1080)},
	}

	id, ok := MonitorIDFor(displays, image.Rect(1920, 0, 3840, 1080))
	if !ok || id != "mon-b" {
		t.Errorf("exact rect should map to mon-b, got %q ok=%v", id, ok)
	}

	// Mostly over mon-a with a sliver on mon-b.
	id, ok = MonitorIDFor(displays, image.Rect(100, 100, 2000, 1000))
	if !ok || id != "mon-a" {
		t.Errorf("greatest overlap should win, got %q ok=%v", id, ok)
	}
}

func TestMonitorIDForNearest(t *testing.T) {
	displays := []DisplayInfo{
		{ID: "mon-a", Rect: image.Rect(0, 0, 1920, 1080)},
		{ID: "mon-b", Rect: image.Rect(1920, 0, 3840, 1080)},
	}

	// No overlap at all: below the right monitor, nearest center wins.
	id, ok := MonitorIDFor(displays, image.Rect(3000, 2000, 3100, 2100))
	if !ok || id != "mon-b" {
		t.Errorf("nearest center should win without overlap, got %q ok=%v", id, ok)
	}

	if _, ok := MonitorIDFor(nil, image.Rect(0, 0, 10, 10)); ok {
		t.Error("empty display list should not resolve")
	}
}

func TestRectsMatch(t *testing.T) {
	base := image.Rect(0, 0, 1920, 1080)

	if !RectsMatch(base, image.Rect(0, 0, 1920, 1080), 0) {
		t.Error("identical rects should match")
	}
	if !RectsMatch(base, image.Rect(-1, 1, 1921, 1079), 1) {
		t.Error("rects within 1px should match with eps 1")
	}
	if RectsMatch(base, image.Rect(0, 0, 1918, 1080), 1) {
		t.Error("2px difference should not match with eps 1")
	}
}
