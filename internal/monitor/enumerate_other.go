//go:build !windows

// Package monitor portable display enumeration.
//
// Non-Windows builds read display bounds through the screenshot library.
// The primary flag is a heuristic: the display whose rect starts at the
// virtual-desktop origin, else display 0.
package monitor

import (
	"fmt"

	"github.com/kbinani/screenshot"
)

// systemEnumerator reads displays through the screenshot library.
type systemEnumerator struct{}

// SystemEnumerator returns the native display enumerator.
func SystemEnumerator() Enumerator {
	return systemEnumerator{}
}

// Enumerate lists all attached displays in normalized order.
func (systemEnumerator) Enumerate() ([]Area, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, ErrNoMonitors
	}

	areas := make([]Area, 0, n)
	primarySeen := false
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		primary := bounds.Min.X == 0 && bounds.Min.Y == 0
		if primary {
			primarySeen = true
		}
		areas = append(areas, Area{
			Primary: primary,
			Rect:    bounds,
			Device:  fmt.Sprintf("DISPLAY%d", i+1),
		})
	}
	if !primarySeen {
		areas[0].Primary = true
	}
	return Normalize(areas), nil
}

// Ensure systemEnumerator implements Enumerator
var _ Enumerator = systemEnumerator{}
