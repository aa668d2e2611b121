package hostwin

import (
	"image"
	"testing"
)

func TestParseZOrder(t *testing.T) {
	cases := []struct {
		in   string
		want ZOrder
	}{
		{"desktop", ZDesktop},
		{"bottom", ZBottom},
		{"normal", ZNormal},
		{"top", ZTop},
		{"topmost", ZTopmost},
		{"overlay", ZTopmost},
		{"  Topmost  ", ZTopmost},
		{"DESKTOP", ZDesktop},
		{"", ZDesktop},
		{"sideways", ZDesktop},
	}
	for _, tc := range cases {
		if got := ParseZOrder(tc.in); got != tc.want {
			t.Errorf("ParseZOrder(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestZOrderString(t *testing.T) {
	cases := map[ZOrder]string{
		ZDesktop: "desktop",
		ZBottom:  "bottom",
		ZNormal:  "normal",
		ZTop:     "top",
		ZTopmost: "topmost",
	}
	for z, want := range cases {
		if got := z.String(); got != want {
			t.Errorf("ZOrder(%d).String() = %q, want %q", z, got, want)
		}
	}
}

func TestStubLifecycle(t *testing.T) {
	s := NewStub()

	host, err := s.EnsureHost()
	if err != nil {
		t.Fatalf("EnsureHost: %v", err)
	}
	if host == None {
		t.Fatal("EnsureHost returned None")
	}
	again, err := s.EnsureHost()
	if err != nil || again != host {
		t.Fatalf("EnsureHost not stable: got %v, %v", again, err)
	}

	rect := image.Rect(0, 0, 1920, 1080)
	w, err := s.CreateChild(host, rect)
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if w == host {
		t.Fatal("child handle collides with host")
	}

	if err := s.ApplyStyle(w, ZBottom); err != nil {
		t.Fatalf("ApplyStyle: %v", err)
	}
	s.SetVisible(w, false)

	sw := s.Window(w)
	if sw == nil {
		t.Fatal("window not recorded")
	}
	if sw.Rect != rect {
		t.Errorf("rect = %v, want %v", sw.Rect, rect)
	}
	if sw.Z != ZBottom {
		t.Errorf("z = %v, want %v", sw.Z, ZBottom)
	}
	if sw.Visible {
		t.Error("window still visible after hide")
	}

	s.Destroy(w)
	if live := s.Live(); len(live) != 0 {
		t.Errorf("live windows after destroy: %v", live)
	}
	if !s.Window(w).Destroyed {
		t.Error("destroy not recorded")
	}
}

func TestStubFailures(t *testing.T) {
	s := NewStub()
	s.FailHost = true
	if _, err := s.EnsureHost(); err == nil {
		t.Error("EnsureHost succeeded with FailHost set")
	}

	s.FailHost = false
	host, err := s.EnsureHost()
	if err != nil {
		t.Fatalf("EnsureHost: %v", err)
	}

	s.FailCreate = true
	if _, err := s.CreateChild(host, image.Rect(0, 0, 10, 10)); err == nil {
		t.Error("CreateChild succeeded with FailCreate set")
	}
	if len(s.Created) != 0 {
		t.Errorf("failed create recorded a window: %v", s.Created)
	}

	if s.Pump() {
		t.Error("stub pump reported quit")
	}
}
