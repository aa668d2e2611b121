// Package config provides configuration management for the wallpaper engine.
//
// Supports loading from TOML (default), JSON, and YAML files, environment
// variable overrides, and sensible defaults. The fixed sections decode onto
// the Config struct; the ordered [wallpaper]/[wallpaperN] profile sections
// are decoded in a second positional pass (see profiles.go) because their
// section names carry ordering.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
)

// Config holds the complete engine configuration.
type Config struct {
	// DataDir is the Sentinel data root directory. Empty selects the
	// per-user default (~/.Sentinel), overridable via SENTINEL_WALLPAPER_DIR.
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	// Pausing holds the global pause policy profiles inherit from.
	Pausing PausingConfig `toml:"pausing" json:"pausing" yaml:"pausing"`

	// Watcher controls hot-reload polling of asset content.
	Watcher WatcherConfig `toml:"watcher" json:"watcher" yaml:"watcher"`

	// Runtime controls the tick loop.
	Runtime RuntimeConfig `toml:"runtime" json:"runtime" yaml:"runtime"`

	// Snapshot controls the crash-recovery snapshot pipeline.
	Snapshot SnapshotConfig `toml:"snapshot" json:"snapshot" yaml:"snapshot"`

	// Bridge configures the telemetry backend connection.
	Bridge BridgeConfig `toml:"bridge" json:"bridge" yaml:"bridge"`

	// Diagnostics toggles optional state-change logging.
	Diagnostics DiagnosticsConfig `toml:"diagnostics" json:"diagnostics" yaml:"diagnostics"`

	// Logging configures log output.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Profiles are the ordered wallpaper sections, decoded positionally:
	// the base [wallpaper] section first, then [wallpaperN] ascending.
	Profiles []Profile `toml:"-" json:"-" yaml:"-"`
}

// PausingConfig is the global pause policy. Profile sections may override
// the three window triggers per profile.
type PausingConfig struct {
	// Focus pauses when a window has input focus: off, per-monitor, or
	// all-monitors.
	Focus string `toml:"focus" json:"focus" yaml:"focus"`

	// Maximized pauses when a window is maximized.
	Maximized string `toml:"maximized" json:"maximized" yaml:"maximized"`

	// Fullscreen pauses when a borderless window covers a monitor.
	Fullscreen string `toml:"fullscreen" json:"fullscreen" yaml:"fullscreen"`

	// CheckIntervalMs is the pause evaluation cadence. Values below 100
	// are raised to 100.
	CheckIntervalMs int `toml:"check_interval_ms" json:"check_interval_ms" yaml:"check_interval_ms"`

	// IdleTimeoutMs pauses every instance after this much user
	// inactivity. Zero disables the idle trigger.
	IdleTimeoutMs int `toml:"idle_timeout_ms" json:"idle_timeout_ms" yaml:"idle_timeout_ms"`

	// OnBattery pauses instances while the machine runs unplugged.
	OnBattery bool `toml:"on_battery" json:"on_battery" yaml:"on_battery"`
}

// FocusMode returns the parsed focus trigger scope.
func (p PausingConfig) FocusMode() pause.Mode { return modeOrOff(p.Focus) }

// MaximizedMode returns the parsed maximized trigger scope.
func (p PausingConfig) MaximizedMode() pause.Mode { return modeOrOff(p.Maximized) }

// FullscreenMode returns the parsed fullscreen trigger scope.
func (p PausingConfig) FullscreenMode() pause.Mode { return modeOrOff(p.Fullscreen) }

func modeOrOff(s string) pause.Mode {
	if s == "" {
		return pause.Off
	}
	m, err := pause.ParseMode(s)
	if err != nil {
		return pause.Off
	}
	return m
}

// WatcherConfig controls asset hot-reload polling.
type WatcherConfig struct {
	// Enabled turns the asset watcher (and config hot-reload) on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// IntervalMs is the mtime poll cadence. Values below 100 are raised
	// to 100.
	IntervalMs int `toml:"interval_ms" json:"interval_ms" yaml:"interval_ms"`

	// DebounceMs is how long a directory must stay quiet after a change
	// before one reload fires.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// EditableIntervalMs is the fast-path poll cadence for editable
	// style variables.
	EditableIntervalMs int `toml:"editable_interval_ms" json:"editable_interval_ms" yaml:"editable_interval_ms"`
}

// RuntimeConfig controls the tick loop.
type RuntimeConfig struct {
	// TickSleepMs is the sleep between ticks. Values below 1 are raised
	// to 1.
	TickSleepMs int `toml:"tick_sleep_ms" json:"tick_sleep_ms" yaml:"tick_sleep_ms"`

	// ReapplyOnPauseChange re-runs the full apply pass after leaving the
	// all-paused state.
	ReapplyOnPauseChange bool `toml:"reapply_on_pause_change" json:"reapply_on_pause_change" yaml:"reapply_on_pause_change"`

	// MonitorCheckIntervalMs is the topology change detection cadence.
	MonitorCheckIntervalMs int `toml:"monitor_check_interval_ms" json:"monitor_check_interval_ms" yaml:"monitor_check_interval_ms"`

	// ForwardCursor forwards the cursor position into unpaused scenes.
	ForwardCursor bool `toml:"forward_cursor" json:"forward_cursor" yaml:"forward_cursor"`
}

// SnapshotConfig controls the crash-recovery snapshot pipeline.
type SnapshotConfig struct {
	// Enabled turns the snapshot pipeline on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// RefreshIntervalSec is the keep-fresh save cadence while rendering.
	RefreshIntervalSec int `toml:"refresh_interval_sec" json:"refresh_interval_sec" yaml:"refresh_interval_sec"`

	// ApplyOnBoot applies the persisted snapshot as the OS wallpaper at
	// startup, before any instance exists.
	ApplyOnBoot bool `toml:"apply_on_boot" json:"apply_on_boot" yaml:"apply_on_boot"`

	// ApplyOnShutdown captures and applies a final snapshot on clean
	// shutdown.
	ApplyOnShutdown bool `toml:"apply_on_shutdown" json:"apply_on_shutdown" yaml:"apply_on_shutdown"`
}

// BridgeConfig configures the telemetry backend connection.
type BridgeConfig struct {
	// Endpoint is the named pipe (Windows) or Unix socket name.
	Endpoint string `toml:"endpoint" json:"endpoint" yaml:"endpoint"`

	// PollIntervalMs is the background snapshot poll cadence.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// Sections are the telemetry sections requested from the backend.
	Sections []string `toml:"sections" json:"sections" yaml:"sections"`
}

// DiagnosticsConfig toggles optional state-change logging.
type DiagnosticsConfig struct {
	// LogPauseStateChanges logs every pause/resume flip with its cause.
	LogPauseStateChanges bool `toml:"log_pause_state_changes" json:"log_pause_state_changes" yaml:"log_pause_state_changes"`

	// LogWatcherReloads logs asset and config hot-reloads.
	LogWatcherReloads bool `toml:"log_watcher_reloads" json:"log_watcher_reloads" yaml:"log_watcher_reloads"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath overrides the default log file location.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// Build converts the section into the logging package's configuration.
func (l LoggingConfig) Build() *logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(l.Level); err == nil {
		cfg.Level = level
	}
	if format, err := logging.ParseFormat(l.Format); err == nil {
		cfg.Format = format
	}
	if l.Output != "" {
		cfg.Output = l.Output
	}
	if l.FilePath != "" {
		cfg.FilePath = l.FilePath
	}
	return cfg
}

// DefaultBridgeSections are the telemetry sections the engine subscribes
// to when the config names none.
var DefaultBridgeSections = []string{
	"time", "cpu", "gpu", "ram", "storage", "displays", "network",
	"wifi", "bluetooth", "audio", "keyboard", "mouse", "power",
	"idle", "system", "processes",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Pausing: PausingConfig{
			Focus:           "off",
			Maximized:       "off",
			Fullscreen:      "off",
			CheckIntervalMs: 500,
			IdleTimeoutMs:   0,
			OnBattery:       false,
		},
		Watcher: WatcherConfig{
			Enabled:            true,
			IntervalMs:         600,
			DebounceMs:         400,
			EditableIntervalMs: 250,
		},
		Runtime: RuntimeConfig{
			TickSleepMs:            8,
			ReapplyOnPauseChange:   true,
			MonitorCheckIntervalMs: 2000,
			ForwardCursor:          true,
		},
		Snapshot: SnapshotConfig{
			Enabled:            true,
			RefreshIntervalSec: 5,
			ApplyOnBoot:        true,
			ApplyOnShutdown:    true,
		},
		Bridge: BridgeConfig{
			Endpoint:       "sentinel",
			PollIntervalMs: 250,
			Sections:       append([]string(nil), DefaultBridgeSections...),
		},
		Diagnostics: DiagnosticsConfig{
			LogPauseStateChanges: true,
			LogWatcherReloads:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "both",
		},
		Profiles: nil,
	}
}

// Load reads configuration from a file, layered over the defaults. The
// format follows the file extension: .json and .yaml/.yml decode as such,
// anything else as TOML. Profile sections are decoded positionally from
// the same bytes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	raw := make(map[string]any)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	}

	cfg.Profiles = decodeProfiles(raw, cfg.Pausing)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// normalize clamps interval fields to their working minimums. Out-of-range
// values are corrected rather than rejected so a sloppy config still runs.
func (c *Config) normalize() {
	if c.Pausing.CheckIntervalMs < 100 {
		c.Pausing.CheckIntervalMs = 100
	}
	if c.Pausing.IdleTimeoutMs < 0 {
		c.Pausing.IdleTimeoutMs = 0
	}
	if c.Watcher.IntervalMs < 100 {
		c.Watcher.IntervalMs = 100
	}
	if c.Watcher.DebounceMs < 0 {
		c.Watcher.DebounceMs = 0
	}
	if c.Watcher.EditableIntervalMs < 50 {
		c.Watcher.EditableIntervalMs = 50
	}
	if c.Runtime.TickSleepMs < 1 {
		c.Runtime.TickSleepMs = 1
	}
	if c.Runtime.MonitorCheckIntervalMs < 250 {
		c.Runtime.MonitorCheckIntervalMs = 250
	}
	if c.Snapshot.RefreshIntervalSec < 1 {
		c.Snapshot.RefreshIntervalSec = 1
	}
	if c.Bridge.PollIntervalMs < 50 {
		c.Bridge.PollIntervalMs = 50
	}
	if len(c.Bridge.Sections) == 0 {
		c.Bridge.Sections = append([]string(nil), DefaultBridgeSections...)
	}
}

// ApplyEnvOverrides applies environment variable overrides. Environment
// variables take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SENTINEL_WALLPAPER_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SENTINEL_WALLPAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_WALLPAPER_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("SENTINEL_WALLPAPER_BRIDGE_ENDPOINT"); v != "" {
		c.Bridge.Endpoint = v
	}
	if v := os.Getenv("SENTINEL_WALLPAPER_TICK_SLEEP_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Runtime.TickSleepMs = ms
		}
	}
	if v := os.Getenv("SENTINEL_WALLPAPER_WATCH"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Watcher.Enabled = enabled
		}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.Bridge.Sections = append([]string(nil), c.Bridge.Sections...)
	clone.Profiles = make([]Profile, len(c.Profiles))
	for i, p := range c.Profiles {
		clone.Profiles[i] = p
		clone.Profiles[i].MonitorSelectors = append([]string(nil), p.MonitorSelectors...)
	}
	return &clone
}

// SentinelDir returns the per-user data root, honoring the
// SENTINEL_WALLPAPER_DIR override.
func SentinelDir() string {
	if dir := os.Getenv("SENTINEL_WALLPAPER_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".Sentinel"
	}
	return filepath.Join(home, ".Sentinel")
}

// Root returns the effective data root for this configuration.
func (c *Config) Root() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return SentinelDir()
}

// AssetsDir returns the shared asset registry directory.
func (c *Config) AssetsDir() string {
	return filepath.Join(c.Root(), "Assets")
}

// AddonDir returns this addon's own directory, where its config lives.
func (c *Config) AddonDir() string {
	return filepath.Join(c.Root(), "Addons", "wallpaper")
}

// SnapshotDir returns where crash-recovery snapshot images are written.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Root(), "wallpaper", "snapshots")
}

// StatePath returns the snapshot ledger database path.
func (c *Config) StatePath() string {
	return filepath.Join(c.Root(), "wallpaper", "state.db")
}

// DefaultConfigPath returns where the engine looks for its config file,
// honoring the SENTINEL_WALLPAPER_CONFIG override.
func DefaultConfigPath() string {
	if path := os.Getenv("SENTINEL_WALLPAPER_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(SentinelDir(), "Addons", "wallpaper", "config.toml")
}

// EnsureDirectories creates all directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Root(),
		c.AssetsDir(),
		c.AddonDir(),
		c.SnapshotDir(),
		filepath.Dir(c.StatePath()),
	}
	if c.Logging.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
