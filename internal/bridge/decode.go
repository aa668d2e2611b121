package bridge

import (
	"encoding/json"
	"fmt"
	"image"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/telemetry"
)

// Wire shapes for the backend's system and apps payloads. Displays may
// nest their geometry under a metadata object; when that object exists it
// replaces the top-level geometry wholesale, absent fields decoding as
// zero rather than falling back field by field.

type wireSystem struct {
	Displays []wireDisplay `json:"displays"`
	Idle     *wireIdle     `json:"idle"`
	Power    *wirePower    `json:"power"`
}

type wireDisplay struct {
	ID       string           `json:"id"`
	X        int              `json:"x"`
	Y        int              `json:"y"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Primary  bool             `json:"primary"`
	Metadata *wireDisplayMeta `json:"metadata"`
}

type wireDisplayMeta struct {
	ID     string `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type wireIdle struct {
	IdleMS int64 `json:"idle_ms"`
}

type wirePower struct {
	ACStatus string       `json:"ac_status"`
	Battery  *wireBattery `json:"battery"`
}

type wireBattery struct {
	Present  bool `json:"present"`
	Charging bool `json:"charging"`
}

type wireWindowList struct {
	Windows []wireWindow `json:"windows"`
}

type wireWindow struct {
	Title   string `json:"title"`
	Focused bool   `json:"focused"`
	State   string `json:"window_state"`
}

func decodeSystem(raw json.RawMessage) (telemetry.SystemData, error) {
	var ws wireSystem
	if err := json.Unmarshal(raw, &ws); err != nil {
		return telemetry.SystemData{}, fmt.Errorf("system payload: %w", err)
	}

	var out telemetry.SystemData
	for _, d := range ws.Displays {
		id := d.ID
		x, y, w, h := d.X, d.Y, d.Width, d.Height
		if d.Metadata != nil {
			x, y, w, h = d.Metadata.X, d.Metadata.Y, d.Metadata.Width, d.Metadata.Height
			if id == "" {
				id = d.Metadata.ID
			}
		}
		if w <= 0 || h <= 0 || id == "" {
			continue
		}
		out.Displays = append(out.Displays, telemetry.DisplayInfo{
			ID:      id,
			Rect:    image.Rect(x, y, x+w, y+h),
			Primary: d.Primary,
		})
	}

	if ws.Idle != nil && ws.Idle.IdleMS > 0 {
		out.Idle = time.Duration(ws.Idle.IdleMS) * time.Millisecond
	}
	out.OnBattery = powerOnBattery(ws.Power)
	return out, nil
}

// powerOnBattery reads the power section. An explicit ac_status wins; an
// unknown status falls back to "battery present and not charging". A
// missing section means plugged in.
func powerOnBattery(p *wirePower) bool {
	if p == nil {
		return false
	}
	switch strings.ToLower(p.ACStatus) {
	case "online", "ac", "plugged", "plugged_in":
		return false
	case "offline", "battery", "on_battery":
		return true
	}
	return p.Battery != nil && p.Battery.Present && !p.Battery.Charging
}

// decodeApps parses the per-monitor window lists. The payload is an
// object keyed by monitor id. Malformed payloads decode as empty; window
// data is advisory and never blocks a poll.
func decodeApps(raw json.RawMessage) map[string][]telemetry.WindowInfo {
	var wire map[string]wireWindowList
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}

	out := make(map[string][]telemetry.WindowInfo, len(wire))
	for monitorID, entry := range wire {
		windows := make([]telemetry.WindowInfo, 0, len(entry.Windows))
		for _, w := range entry.Windows {
			maximized, fullscreen := telemetry.ParseWindowState(w.State)
			windows = append(windows, telemetry.WindowInfo{
				Title:      w.Title,
				Focused:    w.Focused,
				Maximized:  maximized,
				Fullscreen: fullscreen,
			})
		}
		out[monitorID] = windows
	}
	return out
}

// flattenJSON turns an arbitrary JSON document into dotted key/value
// pairs for scene data bindings: objects contribute their key, arrays
// their index, so {"cpu":{"cores":[{"load":5}]}} yields cpu.cores.0.load.
// Scalars render without a trailing exponent or quotes.
func flattenJSON(raw json.RawMessage) map[string]string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	out := make(map[string]string)
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]string, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(out, joinKey(prefix, k), val[k])
		}
	case []any:
		for i, item := range val {
			flattenInto(out, joinKey(prefix, strconv.Itoa(i)), item)
		}
	case string:
		out[prefix] = val
	case float64:
		out[prefix] = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case nil:
		out[prefix] = ""
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
