// Package bridge talks to the Sentinel backend over its local pipe.
//
// The wire protocol is connection-per-request: open the pipe, write one
// JSON request {ns, cmd, args}, then read the JSON response until the
// server closes its end. No framing beyond that. Two calling styles
// exist. Quick makes a single attempt and is meant for the tick loop,
// where fast failure beats blocking (the next tick retries anyway).
// Reliable retries with increasing backoff for work that must land, such
// as listing registry assets during an apply pass.
//
// A background poller pulls the system and per-monitor window data on a
// fixed cadence and caches the decoded snapshot, so the tick loop reads
// telemetry without ever blocking on the pipe.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/The-Ico2/sentinel-wallpaper/internal/logging"
	"github.com/The-Ico2/sentinel-wallpaper/internal/telemetry"
)

// ErrUnavailable is returned when the backend cannot be reached or closes
// the pipe without answering. Refusals (ok=false responses) are ordinary
// errors, not ErrUnavailable.
var ErrUnavailable = errors.New("bridge: backend unavailable")

// reliableBackoff are the waits between Reliable retries.
var reliableBackoff = []time.Duration{
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
	3200 * time.Millisecond,
}

// Config configures the bridge connection.
type Config struct {
	// Endpoint selects the pipe: a bare name becomes \\.\pipe\<name> on
	// Windows and <runtime dir>/<name>.sock elsewhere.
	Endpoint string

	// PollInterval is the background snapshot poll cadence.
	PollInterval time.Duration

	// Sections are the telemetry sections requested from the backend.
	Sections []string
}

// Asset is one registry entry as the backend reports it.
type Asset struct {
	ID       string         `json:"id"`
	Category string         `json:"category"`
	Metadata map[string]any `json:"metadata"`
	Path     string         `json:"path"`
}

type request struct {
	NS   string         `json:"ns"`
	Cmd  string         `json:"cmd"`
	Args map[string]any `json:"args"`
}

type response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Bridge is a client for the backend pipe plus the background snapshot
// poller.
type Bridge struct {
	endpoint string
	sections []string
	interval time.Duration
	log      *logging.Logger

	// dial is swappable so tests can serve the protocol in-process.
	dial func(endpoint string, quick bool) (net.Conn, error)

	mu          sync.RWMutex
	snapshot    telemetry.Snapshot
	hasSnapshot bool
	connected   bool
	polling     bool
	paused      bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Bridge. Call Start to begin background polling.
func New(cfg Config, log *logging.Logger) *Bridge {
	if log == nil {
		log = logging.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Bridge{
		endpoint: cfg.Endpoint,
		sections: append([]string(nil), cfg.Sections...),
		interval: interval,
		log:      log.WithComponent("bridge"),
		dial:     dialEndpoint,
		done:     make(chan struct{}),
	}
}

// Quick sends one request with a single connection attempt.
func (b *Bridge) Quick(ns, cmd string, args map[string]any) (json.RawMessage, error) {
	return b.call(ns, cmd, args, true)
}

// Reliable sends one request, retrying transport failures with increasing
// backoff. A refusal from the server is returned immediately since
// retrying cannot change it.
func (b *Bridge) Reliable(ns, cmd string, args map[string]any) (json.RawMessage, error) {
	raw, err := b.call(ns, cmd, args, false)
	if err == nil {
		return raw, nil
	}

	for i, delay := range reliableBackoff {
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		b.log.Warn("retrying request",
			"ns", ns, "cmd", cmd,
			"attempt", i+1, "max", len(reliableBackoff), "delay", delay)
		time.Sleep(delay)

		raw, err = b.call(ns, cmd, args, false)
		if err == nil {
			return raw, nil
		}
	}
	return nil, err
}

func (b *Bridge) call(ns, cmd string, args map[string]any, quick bool) (json.RawMessage, error) {
	conn, err := b.dial(b.endpoint, quick)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	timeout := 5 * time.Second
	if quick {
		timeout = 2 * time.Second
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))

	payload, err := json.Marshal(request{NS: ns, Cmd: cmd, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	closeWrite(conn)

	// The server writes its response and closes the pipe. A connection
	// reset after bytes arrived still counts as a complete response.
	raw, err := io.ReadAll(conn)
	if err != nil && len(raw) == 0 {
		return nil, fmt.Errorf("%w: read: %v", ErrUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "request refused"
		}
		return nil, fmt.Errorf("%s/%s: %s", ns, cmd, msg)
	}
	return resp.Data, nil
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}

// Pause suspends background polling and tells the backend every instance
// stopped rendering, so it can throttle the data it streams. The cached
// snapshot stays readable while paused. Polling is gated before the
// command goes out; an unreachable backend still leaves the pipe quiet.
func (b *Bridge) Pause() error {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
	_, err := b.Quick("wallpaper", "pause", nil)
	return err
}

// Resume restarts background polling and tells the backend rendering
// restarted. The next poll lands within one poll interval.
func (b *Bridge) Resume() error {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	_, err := b.Quick("wallpaper", "resume", nil)
	return err
}

// ListAssets returns the backend registry entries for one category. The
// response may be a flat array or an object grouping entries by category;
// both shapes are handled. An empty result is not an error.
func (b *Bridge) ListAssets(category string) ([]Asset, error) {
	raw, err := b.Reliable("assets", "list", map[string]any{"category": category})
	if err != nil {
		return nil, err
	}
	return decodeAssets(raw, category)
}

func decodeAssets(raw json.RawMessage, category string) ([]Asset, error) {
	var flat []Asset
	if err := json.Unmarshal(raw, &flat); err == nil {
		var out []Asset
		for _, a := range flat {
			if strings.EqualFold(a.Category, category) {
				out = append(out, a)
			}
		}
		return out, nil
	}

	var grouped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, errors.New("unrecognized asset listing shape")
	}

	var out []Asset
	for key, arr := range grouped {
		if !strings.EqualFold(key, category) {
			continue
		}
		var entries []Asset
		if err := json.Unmarshal(arr, &entries); err != nil {
			continue
		}
		for _, a := range entries {
			if a.Category == "" {
				a.Category = key
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// Start begins background snapshot polling. Safe to call once.
func (b *Bridge) Start() {
	b.mu.Lock()
	if b.polling {
		b.mu.Unlock()
		return
	}
	b.polling = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.pollLoop()
}

// Stop halts background polling. Direct calls still work afterwards.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.pollOnce()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.pollOnce()
		}
	}
}

// pollOnce pulls the system sections and the per-monitor window lists as
// one snapshot. Both pulls are quick: a missed poll just leaves the
// previous snapshot cached until the next tick. While the bridge is
// paused the poll is skipped entirely; nothing renders, so nothing needs
// fresh data.
func (b *Bridge) pollOnce() {
	b.mu.RLock()
	paused := b.paused
	b.mu.RUnlock()
	if paused {
		return
	}

	sysRaw, err := b.Quick("data", "system", map[string]any{"sections": b.sections})
	if err != nil {
		b.setConnected(false)
		return
	}
	appRaw, err := b.Quick("data", "apps", nil)
	if err != nil {
		b.setConnected(false)
		return
	}

	system, err := decodeSystem(sysRaw)
	if err != nil {
		b.log.Warn("system data decode failed", "error", err)
		b.setConnected(false)
		return
	}
	apps := decodeApps(appRaw)

	snap := telemetry.Snapshot{
		System: system,
		Apps:   apps,
		Flat:   flattenJSON(sysRaw),
		Taken:  time.Now(),
	}

	b.mu.Lock()
	b.snapshot = snap
	b.hasSnapshot = true
	b.connected = true
	b.mu.Unlock()
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// Connected reports whether the last poll reached the backend.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Snapshot returns the most recent decoded snapshot, if any poll has
// succeeded since startup.
func (b *Bridge) Snapshot() (telemetry.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot, b.hasSnapshot
}
