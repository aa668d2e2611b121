//go:build linux

// Package telemetry Linux local probes.
//
// Idle time comes from the freedesktop ScreenSaver service and power state
// from UPower, both over the session/system D-Bus. There is no portable
// foreground-window probe here; the pause engine runs on bridge app data
// alone when the probe reports absent.
package telemetry

import (
	"image"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// D-Bus endpoints.
const (
	screenSaverService  = "org.freedesktop.ScreenSaver"
	screenSaverPath     = "/org/freedesktop/ScreenSaver"
	screenSaverGetIdle  = "org.freedesktop.ScreenSaver.GetSessionIdleTime"
	upowerService       = "org.freedesktop.UPower"
	upowerPath          = "/org/freedesktop/UPower"
	upowerOnBatteryProp = "org.freedesktop.UPower.OnBattery"
)

// linuxProber implements Prober for Linux desktops.
type linuxProber struct {
	mu      sync.Mutex
	session *dbus.Conn
	system  *dbus.Conn
}

func newPlatformProber() Prober {
	return &linuxProber{}
}

// sessionConn lazily connects to the session bus.
func (p *linuxProber) sessionConn() *dbus.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil
		}
		p.session = conn
	}
	return p.session
}

// systemConn lazily connects to the system bus.
func (p *linuxProber) systemConn() *dbus.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.system == nil {
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return nil
		}
		p.system = conn
	}
	return p.system
}

// Foreground is unavailable on Linux; bridge app data covers focus.
func (*linuxProber) Foreground() Foreground {
	return Foreground{}
}

// Idle queries the session idle time from the ScreenSaver service.
func (p *linuxProber) Idle() (time.Duration, bool) {
	conn := p.sessionConn()
	if conn == nil {
		return 0, false
	}

	var seconds uint32
	obj := conn.Object(screenSaverService, dbus.ObjectPath(screenSaverPath))
	if err := obj.Call(screenSaverGetIdle, 0).Store(&seconds); err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// OnBattery reads the UPower OnBattery property.
func (p *linuxProber) OnBattery() (bool, bool) {
	conn := p.systemConn()
	if conn == nil {
		return false, false
	}

	obj := conn.Object(upowerService, dbus.ObjectPath(upowerPath))
	variant, err := obj.GetProperty(upowerOnBatteryProp)
	if err != nil {
		return false, false
	}
	onBattery, ok := variant.Value().(bool)
	if !ok {
		return false, false
	}
	return onBattery, true
}

// Cursor is unavailable without a display-server dependency.
func (*linuxProber) Cursor() (image.Point, bool) {
	return image.Point{}, false
}

// Ensure linuxProber implements Prober
var _ Prober = (*linuxProber)(nil)
