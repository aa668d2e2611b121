package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/pause"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for values that normalization cannot
// repair. Interval floors are clamped by Load; this rejects the rest.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if pausingErrs := validatePausing(&c.Pausing); len(pausingErrs) > 0 {
		errs = append(errs, pausingErrs...)
	}
	if watcherErrs := validateWatcher(&c.Watcher); len(watcherErrs) > 0 {
		errs = append(errs, watcherErrs...)
	}
	if runtimeErrs := validateRuntime(&c.Runtime); len(runtimeErrs) > 0 {
		errs = append(errs, runtimeErrs...)
	}
	if bridgeErrs := validateBridge(&c.Bridge); len(bridgeErrs) > 0 {
		errs = append(errs, bridgeErrs...)
	}
	if loggingErrs := validateLogging(&c.Logging); len(loggingErrs) > 0 {
		errs = append(errs, loggingErrs...)
	}
	if profileErrs := validateProfiles(c.Profiles); len(profileErrs) > 0 {
		errs = append(errs, profileErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePausing(p *PausingConfig) ValidationErrors {
	var errs ValidationErrors

	modes := []struct {
		field string
		value string
	}{
		{"pausing.focus", p.Focus},
		{"pausing.maximized", p.Maximized},
		{"pausing.fullscreen", p.Fullscreen},
	}
	for _, m := range modes {
		if m.value == "" {
			continue
		}
		if _, err := pause.ParseMode(m.value); err != nil {
			errs = append(errs, ValidationError{
				Field:   m.field,
				Message: fmt.Sprintf("unknown pause mode: %s (valid: off, per-monitor, all-monitors)", m.value),
			})
		}
	}

	if p.CheckIntervalMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "pausing.check_interval_ms",
			Message: "check interval cannot exceed 60000ms (1 minute)",
		})
	}

	return errs
}

func validateWatcher(w *WatcherConfig) ValidationErrors {
	var errs ValidationErrors

	if !w.Enabled {
		return errs
	}

	if w.IntervalMs > 3600000 {
		errs = append(errs, ValidationError{
			Field:   "watcher.interval_ms",
			Message: "watch interval cannot exceed 3600000ms (1 hour)",
		})
	}
	if w.DebounceMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "watcher.debounce_ms",
			Message: "debounce cannot exceed 60000ms (1 minute)",
		})
	}

	return errs
}

func validateRuntime(r *RuntimeConfig) ValidationErrors {
	var errs ValidationErrors

	if r.TickSleepMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "runtime.tick_sleep_ms",
			Message: "tick sleep cannot exceed 1000ms",
		})
	}

	return errs
}

func validateBridge(b *BridgeConfig) ValidationErrors {
	var errs ValidationErrors

	if b.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "bridge.endpoint",
			Message: "bridge endpoint is required",
		})
	}
	if b.PollIntervalMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "bridge.poll_interval_ms",
			Message: "poll interval cannot exceed 60000ms (1 minute)",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if l.Level != "" {
		if _, err := logging.ParseLevel(l.Level); err != nil {
			errs = append(errs, ValidationError{
				Field:   "logging.level",
				Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
			})
		}
	}
	if l.Format != "" {
		if _, err := logging.ParseFormat(l.Format); err != nil {
			errs = append(errs, ValidationError{
				Field:   "logging.format",
				Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
			})
		}
	}

	switch strings.ToLower(l.Output) {
	case "", "stdout", "stderr", "both":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	return errs
}

var validScaleModes = map[string]bool{
	"fill":    true,
	"fit":     true,
	"stretch": true,
	"center":  true,
	"tile":    true,
	"span":    true,
}

var validZOrders = map[string]bool{
	"desktop": true,
	"bottom":  true,
	"normal":  true,
	"top":     true,
	"topmost": true,
	"overlay": true,
}

func validateProfiles(profiles []Profile) ValidationErrors {
	var errs ValidationErrors

	for _, p := range profiles {
		if !validScaleModes[p.Mode] {
			errs = append(errs, ValidationError{
				Field:   p.Section + ".mode",
				Message: fmt.Sprintf("invalid mode: %s (valid: fill, fit, stretch, center, tile, span)", p.Mode),
			})
		}
		if !validZOrders[p.ZOrder] {
			errs = append(errs, ValidationError{
				Field:   p.Section + ".z_index",
				Message: fmt.Sprintf("invalid z order: %s (valid: desktop, bottom, normal, top, topmost, overlay)", p.ZOrder),
			})
		}
		for i, sel := range p.MonitorSelectors {
			if !isValidSelector(sel) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.monitor_index[%d]", p.Section, i),
					Message: fmt.Sprintf("invalid monitor selector: %s (valid: p, *, or a 0-based index)", sel),
				})
			}
		}
	}

	return errs
}

func isValidSelector(s string) bool {
	switch strings.ToLower(s) {
	case "p", "primary", "*", "all":
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0
}
