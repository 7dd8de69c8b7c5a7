// Package player provides control of the local media player process. The
// Port interface is the only surface the playback core sees; the mpv
// JSON-IPC adapter and process supervision behind it are implementation
// details.
package player

import "context"

// Port is the control surface for a loaded media player. All positions and
// durations are in seconds, matching the player's native units; callers that
// work in milliseconds convert at the boundary.
//
// Implementations must be safe for use from a single control loop; they are
// not required to support concurrent commands.
type Port interface {
	// Load replaces the current media with the file at path and starts
	// playback
	Load(ctx context.Context, path string) error

	// Seek jumps to an absolute position in seconds
	Seek(ctx context.Context, seconds float64) error

	// SetSpeed sets the playback speed multiplier (1.0 = normal)
	SetSpeed(ctx context.Context, speed float64) error

	// SetPaused pauses or resumes playback
	SetPaused(ctx context.Context, paused bool) error

	// Position returns the current playback position in seconds.
	// Returns ErrPropertyUnavailable while no file is loaded or the player
	// is still buffering.
	Position(ctx context.Context) (float64, error)

	// Duration returns the duration of the loaded file in seconds.
	// Returns ErrPropertyUnavailable until the demuxer has determined it.
	Duration(ctx context.Context) (float64, error)

	// EOFReached reports whether playback has reached the end of the file
	EOFReached(ctx context.Context) (bool, error)
}
