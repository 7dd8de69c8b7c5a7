package timeline

import "errors"

// Timeline calculation errors
var (
	// ErrNoActiveScenes indicates the active playlist is empty or has zero
	// total duration, so there is no position to compute
	ErrNoActiveScenes = errors.New("no active scenes in playlist")
)
