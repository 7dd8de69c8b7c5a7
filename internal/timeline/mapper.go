// Package timeline computes what should be playing at any given moment by
// treating the active playlist as a repeating cycle anchored to the wall
// clock. Every device deriving its position from the same NTP-disciplined
// clock lands on the same scene and offset without any coordination.
package timeline

import (
	"time"

	"github.com/lumenplay/agent/internal/models"
)

// CycleDurationMs returns the total duration of one pass through the given
// scenes in integer milliseconds. Zero means there is nothing to play.
func CycleDurationMs(scenes []*models.Scene) int64 {
	var total int64
	for _, s := range scenes {
		total += s.DurationMs()
	}
	return total
}

// Map calculates the playback position dictated by the wall clock for the
// given active playlist. This is a pure function with no I/O - it can be
// called every tick without cost beyond a linear scan of the playlist.
//
// Returns ErrNoActiveScenes when the playlist is empty or has zero total
// duration; callers must treat that as a distinct "no content" state rather
// than a playback position.
func Map(scenes []*models.Scene, now time.Time) (*Position, error) {
	if len(scenes) == 0 {
		return nil, ErrNoActiveScenes
	}

	cycleMs := CycleDurationMs(scenes)
	if cycleMs == 0 {
		return nil, ErrNoActiveScenes
	}

	expectedMs := now.UnixMilli() % cycleMs
	if expectedMs < 0 {
		// Clocks before the epoch only happen in tests, but keep the
		// modulo result in [0, cycleMs) regardless.
		expectedMs += cycleMs
	}

	// Walk the playlist accumulating durations until the running total
	// passes the expected position.
	var accumulated int64
	for i, s := range scenes {
		d := s.DurationMs()
		if expectedMs < accumulated+d {
			return &Position{
				SceneIndex: i,
				Scene:      s,
				OffsetMs:   expectedMs - accumulated,
				ExpectedMs: expectedMs,
				CycleMs:    cycleMs,
			}, nil
		}
		accumulated += d
	}

	// Unreachable when durations sum to cycleMs; guard against zero-length
	// trailing scenes by pinning to the start of the last scene.
	last := len(scenes) - 1
	return &Position{
		SceneIndex: last,
		Scene:      scenes[last],
		OffsetMs:   0,
		ExpectedMs: expectedMs,
		CycleMs:    cycleMs,
	}, nil
}
