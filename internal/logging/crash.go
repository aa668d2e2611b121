// Package logging provides structured logging with slog for the wallpaper
// runtime.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// CrashReport records information about a recovered panic. A crash in this
// process is user-visible as a broken desktop background, so anything that
// slips past normal error handling gets dumped to disk for diagnosis.
type CrashReport struct {
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	PanicValue   string    `json:"panic_value"`
	StackTrace   string    `json:"stack_trace"`
	Component    string    `json:"component,omitempty"`
}

// CrashHandler handles panic recovery and crash dump writing.
type CrashHandler struct {
	mu        sync.Mutex
	crashDir  string
	version   string
	component string
}

// DefaultCrashDir returns the crash dump directory under the data root.
func DefaultCrashDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sentinel-wallpaper-crashes")
	}
	return filepath.Join(homeDir, ".Sentinel", "logs", "crashes")
}

// NewCrashHandler creates a CrashHandler writing dumps into crashDir.
func NewCrashHandler(crashDir, version, component string) *CrashHandler {
	if crashDir == "" {
		crashDir = DefaultCrashDir()
	}
	os.MkdirAll(crashDir, 0750)
	return &CrashHandler{
		crashDir:  crashDir,
		version:   version,
		component: component,
	}
}

// Recover is meant to be deferred at the top of long-running goroutines
// (main loop, snapshot worker). It converts a panic into a crash report
// plus an error log entry, and reports whether a panic was absorbed.
func (h *CrashHandler) Recover() bool {
	v := recover()
	if v == nil {
		return false
	}

	report := CrashReport{
		Timestamp:    time.Now(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprint(v),
		StackTrace:   string(debug.Stack()),
		Component:    h.component,
	}

	path, err := h.writeReport(report)
	if err != nil {
		Error("panic recovered, crash dump failed",
			"panic", report.PanicValue, "dump_error", err)
		return true
	}
	Error("panic recovered", "panic", report.PanicValue, "dump", path)
	return true
}

// writeReport persists a crash report as JSON.
func (h *CrashHandler) writeReport(report CrashReport) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := fmt.Sprintf("crash-%s.json", report.Timestamp.Format("20060102-150405.000"))
	path := filepath.Join(h.crashDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}
