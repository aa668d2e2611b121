package metrics

import "time"

// EngineMetrics holds the wallpaper engine's instruments.
type EngineMetrics struct {
	registry *Registry
	started  time.Time

	// Counters
	TicksTotal       *Counter
	FramesTotal      *Counter
	FramesDropped    *Counter
	PauseTransitions *Counter
	SnapshotWrites   *Counter
	SnapshotRefusals *Counter
	SnapshotApplies  *Counter
	Recompiles       *Counter
	AppliesTotal     *Counter
	BridgeReconnects *Counter
	InstanceFailures *Counter

	// Gauges
	InstancesHosted  *Gauge
	InstancesPaused  *Gauge
	BridgeConnected  *Gauge
	MonitorsAttached *Gauge
	UptimeSeconds    *Gauge

	// Histograms
	TickDuration    *Histogram
	CaptureDuration *Histogram
	ApplyDuration   *Histogram
}

// NewEngineMetrics creates and registers all engine metrics.
func NewEngineMetrics(registry *Registry) *EngineMetrics {
	if registry == nil {
		registry = NewRegistry("sentinel_wallpaper")
	}

	return &EngineMetrics{
		registry: registry,
		started:  time.Now(),

		TicksTotal: registry.RegisterCounter(
			"ticks_total",
			"Total tick loop iterations",
			nil,
		),
		FramesTotal: registry.RegisterCounter(
			"frames_total",
			"Total frames rendered across all instances",
			nil,
		),
		FramesDropped: registry.RegisterCounter(
			"frames_dropped_total",
			"Frames dropped on submit failure",
			nil,
		),
		PauseTransitions: registry.RegisterCounter(
			"pause_transitions_total",
			"Pause or resume flips across all instances",
			nil,
		),
		SnapshotWrites: registry.RegisterCounter(
			"snapshot_writes_total",
			"Snapshot images persisted to disk",
			nil,
		),
		SnapshotRefusals: registry.RegisterCounter(
			"snapshot_refusals_total",
			"Snapshot stitches refused for being entirely black",
			nil,
		),
		SnapshotApplies: registry.RegisterCounter(
			"snapshot_applies_total",
			"Snapshots applied as the system wallpaper",
			nil,
		),
		Recompiles: registry.RegisterCounter(
			"recompiles_total",
			"Scene recompilations from asset hot-reload",
			nil,
		),
		AppliesTotal: registry.RegisterCounter(
			"applies_total",
			"Full apply passes over the configured profiles",
			nil,
		),
		BridgeReconnects: registry.RegisterCounter(
			"bridge_reconnects_total",
			"Bridge connectivity transitions to connected",
			nil,
		),
		InstanceFailures: registry.RegisterCounter(
			"instance_failures_total",
			"Instances disabled by fatal render errors",
			nil,
		),

		InstancesHosted: registry.RegisterGauge(
			"instances_hosted",
			"Currently hosted wallpaper instances",
			nil,
		),
		InstancesPaused: registry.RegisterGauge(
			"instances_paused",
			"Currently paused wallpaper instances",
			nil,
		),
		BridgeConnected: registry.RegisterGauge(
			"bridge_connected",
			"Whether the telemetry bridge is reachable",
			nil,
		),
		MonitorsAttached: registry.RegisterGauge(
			"monitors_attached",
			"Monitors found by the last enumeration",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds since the engine started",
			nil,
		),

		TickDuration: registry.RegisterHistogram(
			"tick_duration_seconds",
			"Duration of one tick loop iteration",
			nil,
			FrameBuckets,
		),
		CaptureDuration: registry.RegisterHistogram(
			"capture_duration_seconds",
			"Duration of one snapshot pixel capture",
			nil,
			FrameBuckets,
		),
		ApplyDuration: registry.RegisterHistogram(
			"apply_duration_seconds",
			"Duration of one full apply pass",
			nil,
			DefaultBuckets,
		),
	}
}

// Registry returns the registry the instruments live in.
func (m *EngineMetrics) Registry() *Registry {
	return m.registry
}

// StartTickTimer counts one tick and times it until Stop.
func (m *EngineMetrics) StartTickTimer() *HistogramTimer {
	m.TicksTotal.Inc()
	return m.TickDuration.Timer()
}

// RecordApplyPass records one full apply pass and its outcome.
func (m *EngineMetrics) RecordApplyPass(d time.Duration, hosted, monitors int) {
	m.AppliesTotal.Inc()
	m.ApplyDuration.ObserveDuration(d)
	m.InstancesHosted.Set(int64(hosted))
	m.MonitorsAttached.Set(int64(monitors))
}

// RecordPauseEvaluation records the paused population after one pause
// pass and counts how many instances flipped.
func (m *EngineMetrics) RecordPauseEvaluation(flips, paused int) {
	if flips > 0 {
		m.PauseTransitions.Add(uint64(flips))
	}
	m.InstancesPaused.Set(int64(paused))
}

// UpdateUptime refreshes the uptime gauge.
func (m *EngineMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

// Snapshot returns the key figures for the shutdown summary.
func (m *EngineMetrics) Snapshot() map[string]any {
	m.UpdateUptime()
	return map[string]any{
		"ticks_total":           m.TicksTotal.Value(),
		"frames_total":          m.FramesTotal.Value(),
		"frames_dropped_total":  m.FramesDropped.Value(),
		"pause_transitions":     m.PauseTransitions.Value(),
		"snapshot_writes_total": m.SnapshotWrites.Value(),
		"snapshot_refusals":     m.SnapshotRefusals.Value(),
		"snapshot_applies":      m.SnapshotApplies.Value(),
		"recompiles_total":      m.Recompiles.Value(),
		"applies_total":         m.AppliesTotal.Value(),
		"instances_hosted":      m.InstancesHosted.Value(),
		"instances_paused":      m.InstancesPaused.Value(),
		"bridge_connected":      m.BridgeConnected.Value(),
		"uptime_seconds":        m.UptimeSeconds.Value(),
		"tick_mean_seconds":     m.TickDuration.Mean(),
		"capture_mean_seconds":  m.CaptureDuration.Mean(),
	}
}
