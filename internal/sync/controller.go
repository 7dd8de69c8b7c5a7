// Package sync keeps playback locked to the wall clock. Instead of seeking
// whenever the player drifts, the controller nudges playback speed in small
// tiers so corrections stay invisible to viewers; a hard seek is the last
// resort for offsets too large to absorb smoothly.
package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/metrics"
	"github.com/lumenplay/agent/internal/player"
)

// Speed adjustments per tier, applied as 1.0 +/- adjust depending on
// whether the player is behind or ahead of the wall clock.
const (
	gentleAdjust     = 0.01
	moderateAdjust   = 0.03
	aggressiveAdjust = 0.05

	durationPollInterval = 500 * time.Millisecond
)

// Tier classifies the magnitude of a playback offset
type Tier int

// Correction tiers, from no action up to a hard seek
const (
	TierNone Tier = iota
	TierGentle
	TierModerate
	TierAggressive
	TierSeek
)

// String returns the tier name for logs and metrics labels
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierGentle:
		return "gentle"
	case TierModerate:
		return "moderate"
	case TierAggressive:
		return "aggressive"
	case TierSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the controller's state for diagnostics
type Status struct {
	OffsetMs       int64   `json:"offset_ms"`
	CommandedSpeed float64 `json:"commanded_speed"`
	Tier           string  `json:"tier"`
	Corrections    int64   `json:"corrections"`
	Seeks          int64   `json:"seeks"`
	SkippedTicks   int64   `json:"skipped_ticks"`
}

// Controller drives one playback position toward the wall-clock-dictated
// position using tiered proportional speed control. It issues a player
// command only when the required speed differs from the last commanded
// speed, so an in-sync player receives no traffic at all.
type Controller struct {
	cfg     config.SyncConfig
	port    player.Port
	metrics *metrics.Metrics

	mu             stdsync.Mutex
	commandedSpeed float64
	lastOffsetMs   int64
	lastTier       Tier
	corrections    int64
	seeks          int64
	skippedTicks   int64
	lastStatusLog  time.Time
}

// NewController creates a sync controller for the given player port.
// The metrics recorder may be nil.
func NewController(cfg config.SyncConfig, port player.Port, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:            cfg,
		port:           port,
		metrics:        m,
		commandedSpeed: 1.0,
	}
}

// WrapOffset corrects a raw offset for loop wrap-around. Near a loop
// boundary the shorter way around is the true drift: an offset beyond half
// the file duration in either direction is mapped to its wrapped
// equivalent on the other side.
func WrapOffset(offsetMs, durationMs int64) int64 {
	if durationMs <= 0 {
		return offsetMs
	}
	half := durationMs / 2
	if offsetMs > half {
		return offsetMs - durationMs
	}
	if offsetMs < -half {
		return offsetMs + durationMs
	}
	return offsetMs
}

// AlignNow performs a hard seek to the expected position and resets speed
// to normal. Called right after media is loaded or reloaded, when the
// player's position bears no relation to the wall clock yet.
func (c *Controller) AlignNow(ctx context.Context, expectedMs int64) error {
	if err := c.port.Seek(ctx, float64(expectedMs)/1000.0); err != nil {
		return err
	}
	if err := c.port.SetSpeed(ctx, 1.0); err != nil {
		return err
	}

	c.mu.Lock()
	c.commandedSpeed = 1.0
	c.lastTier = TierNone
	c.mu.Unlock()

	logger.Log.Info().
		Int64("expected_ms", expectedMs).
		Msg("Aligned playback to wall clock")
	return nil
}

// EnsureDuration polls the player for the loaded file's duration until it
// becomes available or the retry window elapses. On timeout a configured
// fallback duration is returned so playback can proceed with degraded wrap
// correction rather than stall.
func (c *Controller) EnsureDuration(ctx context.Context) (float64, error) {
	deadline := time.Now().Add(c.cfg.DurationRetryWindow)
	for {
		d, err := c.port.Duration(ctx)
		if err == nil && d > 0 {
			return d, nil
		}
		if err != nil && !errors.Is(err, player.ErrPropertyUnavailable) {
			logger.Log.Debug().
				Err(err).
				Msg("Duration query failed, retrying")
		}

		if time.Now().After(deadline) {
			fallback := c.cfg.FallbackDuration.Seconds()
			logger.Log.Warn().
				Dur("retry_window", c.cfg.DurationRetryWindow).
				Float64("fallback_seconds", fallback).
				Msg("Player never reported a duration, using fallback")
			return fallback, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(durationPollInterval):
		}
	}
}

// Tick runs one control iteration: read the player position, compute the
// wrap-corrected offset from the expected position, and issue at most one
// corrective command. A tick where the player cannot report a position is
// skipped without state changes.
func (c *Controller) Tick(ctx context.Context, expectedMs, durationMs int64) error {
	posSec, err := c.port.Position(ctx)
	if err != nil {
		if errors.Is(err, player.ErrPropertyUnavailable) {
			c.mu.Lock()
			c.skippedTicks++
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.IncSkippedTick()
			}
			return nil
		}
		return err
	}

	actualMs := int64(posSec * 1000.0)
	offsetMs := WrapOffset(actualMs-expectedMs, durationMs)
	tier := c.tierFor(offsetMs)

	if tier == TierSeek {
		return c.emergencySeek(ctx, expectedMs, offsetMs)
	}

	target := c.speedFor(tier, offsetMs)

	c.mu.Lock()
	previous := c.commandedSpeed
	c.lastOffsetMs = offsetMs
	c.lastTier = tier
	c.mu.Unlock()

	if target != previous {
		if err := c.port.SetSpeed(ctx, target); err != nil {
			return err
		}
		c.mu.Lock()
		c.commandedSpeed = target
		if tier != TierNone {
			c.corrections++
		}
		c.mu.Unlock()

		if tier != TierNone && c.metrics != nil {
			c.metrics.IncCorrection(tier.String())
		}
		logger.Log.Debug().
			Int64("offset_ms", offsetMs).
			Str("tier", tier.String()).
			Float64("speed", target).
			Msg("Adjusted playback speed")
	}

	if c.metrics != nil {
		c.metrics.ObserveOffset(offsetMs, target)
	}
	c.logStatus(offsetMs, tier, target)
	return nil
}

// emergencySeek handles offsets too large for speed control: jump straight
// to the expected position and return to normal speed
func (c *Controller) emergencySeek(ctx context.Context, expectedMs, offsetMs int64) error {
	logger.Log.Warn().
		Int64("offset_ms", offsetMs).
		Int64("expected_ms", expectedMs).
		Msg("Offset beyond seek threshold, performing hard seek")

	if err := c.port.Seek(ctx, float64(expectedMs)/1000.0); err != nil {
		return err
	}
	if err := c.port.SetSpeed(ctx, 1.0); err != nil {
		return err
	}

	c.mu.Lock()
	c.commandedSpeed = 1.0
	c.lastOffsetMs = offsetMs
	c.lastTier = TierSeek
	c.seeks++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncEmergencySeek()
		c.metrics.ObserveOffset(offsetMs, 1.0)
	}
	return nil
}

// tierFor classifies an offset by magnitude. Bands are inclusive of their
// lower bound: an offset exactly at a threshold lands in the stronger tier.
func (c *Controller) tierFor(offsetMs int64) Tier {
	magnitude := offsetMs
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case magnitude < c.cfg.GentleThresholdMs:
		return TierNone
	case magnitude < c.cfg.ModerateThresholdMs:
		return TierGentle
	case magnitude < c.cfg.AggressiveThresholdMs:
		return TierModerate
	case magnitude < c.cfg.SeekThresholdMs:
		return TierAggressive
	default:
		return TierSeek
	}
}

// speedFor maps a tier and offset sign to the target speed. A positive
// offset means the player is ahead of the wall clock and must slow down.
func (c *Controller) speedFor(tier Tier, offsetMs int64) float64 {
	var adjust float64
	switch tier {
	case TierGentle:
		adjust = gentleAdjust
	case TierModerate:
		adjust = moderateAdjust
	case TierAggressive:
		adjust = aggressiveAdjust
	default:
		return 1.0
	}

	if offsetMs > 0 {
		return 1.0 - adjust
	}
	return 1.0 + adjust
}

// logStatus emits a rate-limited sync status line
func (c *Controller) logStatus(offsetMs int64, tier Tier, speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastStatusLog) < c.cfg.LogInterval {
		return
	}
	c.lastStatusLog = now

	logger.Log.Info().
		Int64("offset_ms", offsetMs).
		Str("tier", tier.String()).
		Float64("speed", speed).
		Int64("corrections", c.corrections).
		Int64("seeks", c.seeks).
		Msg("Sync status")
}

// Snapshot returns the controller's current state for the status API
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		OffsetMs:       c.lastOffsetMs,
		CommandedSpeed: c.commandedSpeed,
		Tier:           c.lastTier.String(),
		Corrections:    c.corrections,
		Seeks:          c.seeks,
		SkippedTicks:   c.skippedTicks,
	}
}
