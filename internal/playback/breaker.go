package playback

import (
	"sync"
	"time"
)

// BreakerState represents the state of the player command breaker
type BreakerState int

const (
	// BreakerClosed indicates commands are flowing normally
	BreakerClosed BreakerState = iota
	// BreakerOpen indicates sustained command failures; the player process
	// needs a restart before commands are attempted again
	BreakerOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CommandBreaker trips after a run of consecutive player command failures.
// A wedged or crashed mpv makes every IPC command fail the same way, so
// rather than hammering a dead socket the orchestrator watches the breaker
// and restarts the player process when it opens.
type CommandBreaker struct {
	threshold int

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewCommandBreaker creates a breaker that opens after threshold
// consecutive failures
func NewCommandBreaker(threshold int) *CommandBreaker {
	return &CommandBreaker{
		threshold: threshold,
		state:     BreakerClosed,
	}
}

// Success records a successful command, clearing the failure run
func (b *CommandBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records a failed command and returns true if this failure
// tripped the breaker open
func (b *CommandBreaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == BreakerClosed && b.failures >= b.threshold {
		b.state = BreakerOpen
		return true
	}
	return false
}

// Tripped reports whether the breaker is open
func (b *CommandBreaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerOpen
}

// Failures returns the current consecutive failure count
func (b *CommandBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker after the player has been restarted
func (b *CommandBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.lastFailure = time.Time{}
}
