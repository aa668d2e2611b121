//go:build !windows && !linux

package telemetry

import (
	"image"
	"time"
)

// nullProber reports every probe as unavailable. The pause engine then
// relies entirely on bridge data.
type nullProber struct{}

func newPlatformProber() Prober {
	return nullProber{}
}

func (nullProber) Foreground() Foreground      { return Foreground{} }
func (nullProber) Idle() (time.Duration, bool) { return 0, false }
func (nullProber) OnBattery() (bool, bool)     { return false, false }
func (nullProber) Cursor() (image.Point, bool) { return image.Point{}, false }

// Ensure nullProber implements Prober
var _ Prober = nullProber{}
