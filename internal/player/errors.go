package player

import "errors"

// Player control errors
var (
	// ErrPropertyUnavailable indicates the player could not report the
	// requested property yet (no file loaded, still buffering). Callers
	// should skip the current tick rather than treat this as data.
	ErrPropertyUnavailable = errors.New("player property unavailable")

	// ErrSocketTimeout indicates the player's IPC socket did not appear
	// within the startup timeout
	ErrSocketTimeout = errors.New("player IPC socket not created within timeout")
)
