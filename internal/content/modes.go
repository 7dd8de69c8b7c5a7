package content

import (
	"context"
	"sync"
	"time"

	"github.com/lumenplay/agent/internal/db"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
	"github.com/lumenplay/agent/internal/playback"
)

// PlaylistSource exposes the currently published playlist
type PlaylistSource interface {
	Playlist() *models.Playlist
}

// PlaylistSourceFunc adapts a function to the PlaylistSource interface
type PlaylistSourceFunc func() *models.Playlist

// Playlist calls the underlying function
func (f PlaylistSourceFunc) Playlist() *models.Playlist {
	return f()
}

// StateModeProvider derives the display mode from persisted device state
// and content availability. The playback loop queries the mode every tick,
// so lookups are cached for the configured refresh interval.
type StateModeProvider struct {
	repos   *db.Repositories
	source  PlaylistSource
	refresh time.Duration

	mu        sync.Mutex
	cached    playback.DisplayMode
	fetchedAt time.Time
}

// NewStateModeProvider creates a mode provider refreshing device state at
// the given interval
func NewStateModeProvider(repos *db.Repositories, source PlaylistSource, refresh time.Duration) *StateModeProvider {
	return &StateModeProvider{
		repos:   repos,
		source:  source,
		refresh: refresh,
		cached:  playback.ModeUnregistered,
	}
}

// Mode returns the current display mode
func (p *StateModeProvider) Mode() playback.DisplayMode {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.fetchedAt) < p.refresh {
		return p.cached
	}
	p.fetchedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.refresh)
	defer cancel()

	state, err := p.repos.DeviceState.Get(ctx)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Failed to load device state, keeping previous display mode")
		return p.cached
	}

	p.cached = p.derive(state)
	return p.cached
}

// derive maps device state and content presence to a display mode
func (p *StateModeProvider) derive(state *models.DeviceState) playback.DisplayMode {
	switch {
	case !state.Registered:
		return playback.ModeUnregistered
	case state.ScreenID == "":
		return playback.ModeNotLinked
	}

	pl := p.source.Playlist()
	if pl == nil || pl.Len() == 0 {
		return playback.ModeWaitingForContent
	}
	return playback.ModePlaying
}
