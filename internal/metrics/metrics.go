// Package metrics exposes Prometheus instrumentation for the playback core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the signage agent
type Metrics struct {
	registry *prometheus.Registry

	syncOffsetMs     prometheus.Gauge
	commandedSpeed   prometheus.Gauge
	corrections      *prometheus.CounterVec
	emergencySeeks   prometheus.Counter
	skippedTicks     prometheus.Counter
	sceneSwitches    prometheus.Counter
	contentReloads   prometheus.Counter
	playerRestarts   prometheus.Counter
	missingMediaSkip prometheus.Counter
}

// New creates and registers the agent's Prometheus collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		syncOffsetMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lumen_sync_offset_ms",
			Help: "Last wrap-corrected playback offset in milliseconds (positive = ahead of wall clock)",
		}),
		commandedSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lumen_sync_commanded_speed",
			Help: "Playback speed multiplier currently commanded to the player",
		}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_sync_corrections_total",
			Help: "Total speed corrections issued, by tier",
		}, []string{"tier"}),
		emergencySeeks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_sync_emergency_seeks_total",
			Help: "Total hard seeks issued for offsets beyond the seek threshold",
		}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_sync_skipped_ticks_total",
			Help: "Total sync ticks skipped because the player reported no position",
		}),
		sceneSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_playback_scene_switches_total",
			Help: "Total scene transitions performed by the orchestrator",
		}),
		contentReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_content_reloads_total",
			Help: "Total playlist reloads triggered by content updates",
		}),
		playerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_player_restarts_total",
			Help: "Total player process restarts after sustained command failures",
		}),
		missingMediaSkip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lumen_playback_missing_media_skips_total",
			Help: "Total scenes skipped because their media file was missing on disk",
		}),
	}

	registry.MustRegister(
		m.syncOffsetMs,
		m.commandedSpeed,
		m.corrections,
		m.emergencySeeks,
		m.skippedTicks,
		m.sceneSwitches,
		m.contentReloads,
		m.playerRestarts,
		m.missingMediaSkip,
	)

	return m
}

// ObserveOffset records the latest wrap-corrected offset and commanded speed
func (m *Metrics) ObserveOffset(offsetMs int64, speed float64) {
	m.syncOffsetMs.Set(float64(offsetMs))
	m.commandedSpeed.Set(speed)
}

// IncCorrection counts a speed correction in the named tier
func (m *Metrics) IncCorrection(tier string) {
	m.corrections.WithLabelValues(tier).Inc()
}

// IncEmergencySeek counts a hard seek
func (m *Metrics) IncEmergencySeek() {
	m.emergencySeeks.Inc()
}

// IncSkippedTick counts a tick skipped for lack of player data
func (m *Metrics) IncSkippedTick() {
	m.skippedTicks.Inc()
}

// IncSceneSwitch counts a scene transition
func (m *Metrics) IncSceneSwitch() {
	m.sceneSwitches.Inc()
}

// IncContentReload counts a playlist reload
func (m *Metrics) IncContentReload() {
	m.contentReloads.Inc()
}

// IncPlayerRestart counts a player process restart
func (m *Metrics) IncPlayerRestart() {
	m.playerRestarts.Inc()
}

// IncMissingMediaSkip counts a scene skipped for missing media
func (m *Metrics) IncMissingMediaSkip() {
	m.missingMediaSkip.Inc()
}

// Handler returns an http.Handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
