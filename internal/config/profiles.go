package config

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
)

// Profile is one wallpaper section resolved against the global defaults.
type Profile struct {
	// Section is the config section name this profile came from.
	Section string

	// Enabled gates the profile without deleting its section.
	Enabled bool

	// WallpaperID names the registry asset to host. Never empty:
	// sections without one are dropped at decode time.
	WallpaperID string

	// MonitorSelectors are ordered selector tokens: "p" for the primary
	// monitor, a 0-based index, or "*" for all remaining monitors.
	MonitorSelectors []string

	// Mode is the scaling mode: fill, fit, stretch, center, tile, or
	// span (one instance stretched across all targets).
	Mode string

	// ZOrder places the host window: desktop, bottom, normal, or top.
	ZOrder string

	// Focus, Maximized, and Fullscreen are the per-profile pause trigger
	// scopes, already resolved against the global pausing section.
	Focus      pause.Mode
	Maximized  pause.Mode
	Fullscreen pause.Mode

	// PauseOnBattery pauses this profile's instances while unplugged.
	PauseOnBattery bool
}

// Triggers returns the profile's pause policy.
func (p Profile) Triggers() pause.Triggers {
	return pause.Triggers{
		Focus:      p.Focus,
		Maximized:  p.Maximized,
		Fullscreen: p.Fullscreen,
		OnBattery:  p.PauseOnBattery,
	}
}

// EnabledProfiles returns the profiles with Enabled set, in section order.
func (c *Config) EnabledProfiles() []Profile {
	var out []Profile
	for _, p := range c.Profiles {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// decodeProfiles extracts wallpaper sections from the raw decoded file.
// Sections are any top-level "wallpaper*" table plus entries of a
// "wallpapers" table, ordered base section first, numbered ascending,
// anything else last by name.
func decodeProfiles(raw map[string]any, defaults PausingConfig) []Profile {
	var profiles []Profile

	collect := func(m map[string]any) {
		for key, value := range m {
			if !strings.HasPrefix(key, "wallpaper") || key == "wallpapers" {
				continue
			}
			section, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if p, ok := decodeProfile(key, section, defaults); ok {
				profiles = append(profiles, p)
			}
		}
	}

	collect(raw)
	if nested, ok := mapAt(raw, "wallpapers"); ok {
		for key, value := range nested {
			section, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if p, ok := decodeProfile(key, section, defaults); ok {
				profiles = append(profiles, p)
			}
		}
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		ci, ni, si := sectionOrderKey(profiles[i].Section)
		cj, nj, sj := sectionOrderKey(profiles[j].Section)
		if ci != cj {
			return ci < cj
		}
		if ni != nj {
			return ni < nj
		}
		return si < sj
	})
	return profiles
}

func decodeProfile(section string, m map[string]any, defaults PausingConfig) (Profile, bool) {
	id, _ := strAt(m, "wallpaper_id")
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, false
	}

	p := Profile{
		Section:     section,
		WallpaperID: id,
		Enabled:     boolOr(m, "enabled", true),
	}

	p.MonitorSelectors = selectorTokens(m["monitor_index"])
	if len(p.MonitorSelectors) == 0 {
		p.MonitorSelectors = []string{"*"}
	}

	if mode, ok := strAt(m, "mode"); ok {
		p.Mode = strings.ToLower(mode)
	} else {
		p.Mode = "fill"
	}
	if z, ok := strAt(m, "z_index"); ok {
		p.ZOrder = strings.ToLower(z)
	} else {
		p.ZOrder = "desktop"
	}

	p.Focus = resolveTriggerMode(m, "focus", defaults.FocusMode())
	p.Maximized = resolveTriggerMode(m, "maximized", defaults.MaximizedMode())
	p.Fullscreen = resolveTriggerMode(m, "fullscreen", defaults.FullscreenMode())
	if boolOr(m, "pause_fullscreen_all_monitors", false) {
		p.Fullscreen = pause.AllMonitors
	}
	p.PauseOnBattery = boolOr(m, "pause_on_battery", defaults.OnBattery)

	return p, true
}

// resolveTriggerMode layers the per-profile spellings over the global
// default: "pause_<trigger>" mode string, a nested pausing table, then the
// legacy "pause_on_<trigger>" boolean.
func resolveTriggerMode(m map[string]any, trigger string, fallback pause.Mode) pause.Mode {
	if mode, ok := pauseModeAt(m, "pause_"+trigger); ok {
		return mode
	}
	if sub, ok := mapAt(m, "pausing"); ok {
		if mode, ok := pauseModeAt(sub, trigger); ok {
			return mode
		}
	}
	if legacy, ok := boolAt(m, "pause_on_"+trigger); ok {
		return pause.FromLegacyBool(legacy)
	}
	return fallback
}

// sectionOrderKey ranks profile section names: the bare "wallpaper"
// section first, then numbered sections ascending, then everything else
// by name.
func sectionOrderKey(section string) (int, int, string) {
	if section == "wallpaper" {
		return 0, 0, section
	}
	if suffix := strings.TrimPrefix(section, "wallpaper"); suffix != section {
		if n, err := strconv.Atoi(suffix); err == nil && n >= 0 {
			return 1, n, section
		}
	}
	return 2, math.MaxInt, section
}

// selectorTokens normalizes a monitor_index value into string tokens. The
// value may be a bare string, a bare number, or a list of either; numeric
// forms keep their integer spelling.
func selectorTokens(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case int:
		return []string{strconv.Itoa(t)}
	case int64:
		return []string{strconv.FormatInt(t, 10)}
	case float64:
		return []string{strconv.Itoa(int(t))}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, selectorTokens(item)...)
		}
		return out
	}
	return nil
}

func mapAt(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func strAt(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func boolAt(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

func boolOr(m map[string]any, key string, fallback bool) bool {
	if v, ok := boolAt(m, key); ok {
		return v
	}
	return fallback
}

func pauseModeAt(m map[string]any, key string) (pause.Mode, bool) {
	s, ok := strAt(m, key)
	if !ok {
		return pause.Off, false
	}
	mode, err := pause.ParseMode(s)
	if err != nil {
		return pause.Off, false
	}
	return mode, true
}
