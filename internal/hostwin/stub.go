package hostwin

import (
	"errors"
	"image"
	"sync"
)

// StubWindow records one child created through the stub manager.
type StubWindow struct {
	Handle    Window
	Rect      image.Rectangle
	Z         ZOrder
	Visible   bool
	Destroyed bool
}

// Stub is an in-memory Manager. It backs the engine on platforms
// without a compositor hook and doubles as the test double.
type Stub struct {
	mu      sync.Mutex
	next    Window
	host    Window
	Created []StubWindow

	FailHost   bool
	FailCreate bool
}

func NewStub() *Stub {
	return &Stub{next: 100}
}

func (s *Stub) EnsureHost() (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailHost {
		return None, errors.New("no desktop host")
	}
	if s.host == None {
		s.host = s.next
		s.next++
	}
	return s.host, nil
}

func (s *Stub) CreateChild(host Window, rect image.Rectangle) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate {
		return None, errors.New("create child window")
	}
	w := s.next
	s.next++
	s.Created = append(s.Created, StubWindow{Handle: w, Rect: rect, Visible: true})
	return w, nil
}

func (s *Stub) ApplyStyle(w Window, z ZOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw := s.find(w); sw != nil {
		sw.Z = z
	}
	return nil
}

func (s *Stub) SetVisible(w Window, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw := s.find(w); sw != nil {
		sw.Visible = visible
	}
}

func (s *Stub) Destroy(w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw := s.find(w); sw != nil {
		sw.Destroyed = true
	}
}

func (s *Stub) Pump() bool { return false }

// Live returns the handles of windows created and not yet destroyed.
func (s *Stub) Live() []Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Window
	for _, sw := range s.Created {
		if !sw.Destroyed {
			out = append(out, sw.Handle)
		}
	}
	return out
}

// Window returns the recorded state for a handle, or nil.
func (s *Stub) Window(w Window) *StubWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw := s.find(w); sw != nil {
		cp := *sw
		return &cp
	}
	return nil
}

func (s *Stub) find(w Window) *StubWindow {
	for i := range s.Created {
		if s.Created[i].Handle == w {
			return &s.Created[i]
		}
	}
	return nil
}
