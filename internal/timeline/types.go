package timeline

import (
	"time"

	"github.com/lumenplay/agent/internal/models"
)

// Clock abstracts the wall clock so the sync loop can be tested with a
// fixed or scripted time source. The production implementation reads the
// NTP-disciplined system clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock
type SystemClock struct{}

// Now returns the current system time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Position describes what the wall clock dictates should be playing at a
// given instant: which scene in the active playlist, how far into it, and
// the cycle geometry the answer was derived from.
type Position struct {
	// SceneIndex is the index into the active playlist
	SceneIndex int

	// Scene is the active scene at the computed position
	Scene *models.Scene

	// OffsetMs is the playback position within the current scene
	OffsetMs int64

	// ExpectedMs is the position within the full cycle
	ExpectedMs int64

	// CycleMs is the total duration of one pass through the active playlist
	CycleMs int64
}
