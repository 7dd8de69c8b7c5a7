// Package playback orchestrates what the player shows: placeholder images
// for devices that are not ready, and wall-clock-synchronized playlist
// content for devices that are. The orchestrator owns the player command
// stream; everything else feeds it playlists and state.
package playback

import (
	"context"
	"errors"
	"os"
	stdsync "sync"
	"time"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/metrics"
	"github.com/lumenplay/agent/internal/models"
	"github.com/lumenplay/agent/internal/player"
	syncctl "github.com/lumenplay/agent/internal/sync"
	"github.com/lumenplay/agent/internal/timeline"
)

const (
	defaultBreakerThreshold = 5
	eofSafetyMargin         = 5 * time.Second
	idlePollInterval        = 500 * time.Millisecond
)

// Orchestrator errors
var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// State is the orchestrator's playback state
type State int

const (
	// StateNoContent means there is nothing playable right now
	StateNoContent State = iota
	// StateLoading means media is being loaded into the player
	StateLoading
	// StatePlaying means content is on screen
	StatePlaying
)

// String returns the state name for logs and the status API
func (s State) String() string {
	switch s {
	case StateNoContent:
		return "no_content"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Strategy selects how playlist content is driven through the player
type Strategy int

const (
	// StrategyNone means no playlist content is being driven
	StrategyNone Strategy = iota
	// StrategyStitched plays a single pre-concatenated loop file and holds
	// it to the wall clock with speed control
	StrategyStitched
	// StrategySceneByScene loads each scene individually, switching at
	// wall-clock boundaries. Used when schedules make the active set vary.
	StrategySceneByScene
)

// String returns the strategy name for logs and the status API
func (s Strategy) String() string {
	switch s {
	case StrategyStitched:
		return "stitched_loop"
	case StrategySceneByScene:
		return "scene_by_scene"
	default:
		return "none"
	}
}

// Restarter restarts the player process after sustained command failures
type Restarter interface {
	Restart() error
}

// Status is a snapshot of the orchestrator for diagnostics
type Status struct {
	State      string `json:"state"`
	Mode       string `json:"mode"`
	Strategy   string `json:"strategy"`
	SceneIndex int    `json:"scene_index"`
	SceneID    string `json:"scene_id,omitempty"`
	LoadedPath string `json:"loaded_path,omitempty"`
	SceneCount int    `json:"scene_count"`
}

// Orchestrator runs the playback state machine. It is started once, driven
// by playlist updates and display mode changes, and stopped on shutdown.
type Orchestrator struct {
	syncCfg      config.SyncConfig
	port         player.Port
	supervisor   Restarter
	controller   *syncctl.Controller
	modes        ModeProvider
	placeholders Placeholders
	clock        timeline.Clock
	metrics      *metrics.Metrics
	breaker      *CommandBreaker

	ctx    context.Context
	cancel context.CancelFunc

	mu         stdsync.RWMutex
	playlist   *models.Playlist
	state      State
	strategy   Strategy
	sceneIndex int
	sceneID    string
	loadedPath string
	started    bool

	reloadChan chan struct{}
	done       chan struct{}
}

// NewOrchestrator creates a playback orchestrator. The metrics recorder
// may be nil.
func NewOrchestrator(
	syncCfg config.SyncConfig,
	port player.Port,
	supervisor Restarter,
	controller *syncctl.Controller,
	modes ModeProvider,
	placeholders Placeholders,
	clock timeline.Clock,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		syncCfg:      syncCfg,
		port:         port,
		supervisor:   supervisor,
		controller:   controller,
		modes:        modes,
		placeholders: placeholders,
		clock:        clock,
		metrics:      m,
		breaker:      NewCommandBreaker(defaultBreakerThreshold),
		reloadChan:   make(chan struct{}, 1),
		done:         make(chan struct{}),
		state:        StateNoContent,
	}
}

// Start launches the playback loop
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.mu.Unlock()

	go o.run()

	logger.Log.Info().
		Dur("tick_interval", o.syncCfg.TickInterval).
		Msg("Playback orchestrator started")
	return nil
}

// Stop shuts down the playback loop and waits for it to exit
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.cancel()
	<-o.done
	logger.Log.Info().Msg("Playback orchestrator stopped")
}

// UpdatePlaylist swaps in a new playlist and interrupts the current
// playback segment so the change takes effect immediately
func (o *Orchestrator) UpdatePlaylist(p *models.Playlist) {
	o.mu.Lock()
	o.playlist = p
	o.mu.Unlock()

	select {
	case o.reloadChan <- struct{}{}:
	default:
	}

	if o.metrics != nil {
		o.metrics.IncContentReload()
	}

	count := 0
	if p != nil {
		count = p.Len()
	}
	logger.Log.Info().
		Int("scenes", count).
		Msg("Playlist updated")
}

// Playlist returns the current playlist snapshot
func (o *Orchestrator) Playlist() *models.Playlist {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.playlist
}

// Status returns a snapshot of the orchestrator for the status API
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	count := 0
	if o.playlist != nil {
		count = o.playlist.Len()
	}
	return Status{
		State:      o.state.String(),
		Mode:       o.modes.Mode().String(),
		Strategy:   o.strategy.String(),
		SceneIndex: o.sceneIndex,
		SceneID:    o.sceneID,
		LoadedPath: o.loadedPath,
		SceneCount: count,
	}
}

// run is the main playback loop. Each iteration evaluates the display mode
// and playlist, plays one segment (or idles), and re-evaluates.
func (o *Orchestrator) run() {
	defer close(o.done)

	for o.ctx.Err() == nil {
		o.step()
	}
}

// step performs one evaluation of the playback state machine
func (o *Orchestrator) step() {
	mode := o.modes.Mode()
	if mode != ModePlaying {
		o.setState(StateNoContent, StrategyNone)
		o.showPlaceholder(mode)
		o.idleWait()
		return
	}

	pl := o.Playlist()
	if pl == nil || pl.Len() == 0 {
		o.setState(StateNoContent, StrategyNone)
		o.showPlaceholder(ModeWaitingForContent)
		o.idleWait()
		return
	}

	scenes := pl.ActiveAt(o.clock.Now())
	if len(scenes) == 0 || timeline.CycleDurationMs(scenes) == 0 {
		o.setState(StateNoContent, StrategyNone)
		o.showPlaceholder(ModeWaitingForContent)
		o.idleWait()
		return
	}

	// A stitched loop only matches the cycle when the active set never
	// changes, so schedules force scene-by-scene playback.
	if pl.LoopFile != "" && !pl.HasSchedules() {
		o.playStitched(pl, scenes)
		return
	}

	// A scene whose file is not on disk loses its slot entirely rather than
	// freezing the screen for its duration.
	playable := o.playableScenes(scenes)
	if len(playable) == 0 || timeline.CycleDurationMs(playable) == 0 {
		o.setState(StateNoContent, StrategyNone)
		o.showPlaceholder(ModeWaitingForContent)
		o.idleWait()
		return
	}
	o.playSceneByScene(playable)
}

// playableScenes filters out scenes whose media file is missing, so the
// timeline maps only over content that can actually be shown
func (o *Orchestrator) playableScenes(scenes []*models.Scene) []*models.Scene {
	playable := make([]*models.Scene, 0, len(scenes))
	for _, scene := range scenes {
		if _, err := os.Stat(scene.MediaFile); err != nil {
			logger.Log.Warn().
				Str("scene_id", scene.ID).
				Str("path", scene.MediaFile).
				Msg("Scene media missing, excluding from playback")
			if o.metrics != nil {
				o.metrics.IncMissingMediaSkip()
			}
			continue
		}
		playable = append(playable, scene)
	}
	return playable
}

// playStitched loads the pre-concatenated loop file and holds its position
// to the wall clock until interrupted
func (o *Orchestrator) playStitched(pl *models.Playlist, scenes []*models.Scene) {
	o.setState(StateLoading, StrategyStitched)

	if _, err := os.Stat(pl.LoopFile); err != nil {
		logger.Log.Warn().
			Str("path", pl.LoopFile).
			Msg("Stitched loop file missing, falling back to scene playback")
		o.playSceneByScene(scenes)
		return
	}

	if o.currentPath() != pl.LoopFile {
		if err := o.load(pl.LoopFile); err != nil {
			o.idleWait()
			return
		}
	}

	durSec, err := o.controller.EnsureDuration(o.ctx)
	if err != nil {
		return
	}
	durMs := int64(durSec * 1000)

	pos, err := timeline.Map(scenes, o.clock.Now())
	if err != nil {
		return
	}
	if err := o.controller.AlignNow(o.ctx, pos.ExpectedMs); err != nil {
		o.noteFailure(err)
		o.idleWait()
		return
	}
	o.breaker.Success()
	o.setState(StatePlaying, StrategyStitched)

	ticker := time.NewTicker(o.syncCfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.reloadChan:
			return
		case <-ticker.C:
			if o.modes.Mode() != ModePlaying {
				return
			}
			pos, err := timeline.Map(scenes, o.clock.Now())
			if err != nil {
				return
			}
			o.trackScene(pos.SceneIndex, pos.Scene.ID)

			if err := o.controller.Tick(o.ctx, pos.ExpectedMs, durMs); err != nil {
				if o.noteFailure(err) {
					return
				}
				continue
			}
			o.breaker.Success()
		}
	}
}

// playSceneByScene plays the single scene the wall clock dictates, then
// returns so the next iteration picks up the following scene
func (o *Orchestrator) playSceneByScene(scenes []*models.Scene) {
	pos, err := timeline.Map(scenes, o.clock.Now())
	if err != nil {
		o.idleWait()
		return
	}
	scene := pos.Scene
	o.trackScene(pos.SceneIndex, scene.ID)

	// The file can vanish between eligibility filtering and load; bounce
	// back to step so the active set is rebuilt without this scene.
	if _, err := os.Stat(scene.MediaFile); err != nil {
		logger.Log.Warn().
			Str("scene_id", scene.ID).
			Str("path", scene.MediaFile).
			Msg("Scene media disappeared, re-evaluating playlist")
		if o.metrics != nil {
			o.metrics.IncMissingMediaSkip()
		}
		o.idleWait()
		return
	}

	o.setState(StateLoading, StrategySceneByScene)
	if o.currentPath() != scene.MediaFile {
		if err := o.load(scene.MediaFile); err != nil {
			o.idleWait()
			return
		}
		if o.metrics != nil {
			o.metrics.IncSceneSwitch()
		}
	}

	if scene.MediaType != models.MediaTypeVideo {
		o.setState(StatePlaying, StrategySceneByScene)
		o.waitBoundary(scenes, pos.SceneIndex)
		return
	}

	durSec, err := o.controller.EnsureDuration(o.ctx)
	if err != nil {
		return
	}
	durMs := int64(durSec * 1000)

	if err := o.controller.AlignNow(o.ctx, pos.OffsetMs); err != nil {
		o.noteFailure(err)
		o.idleWait()
		return
	}
	o.breaker.Success()
	o.setState(StatePlaying, StrategySceneByScene)

	// The wall clock decides when the scene ends, but a video that hits
	// EOF early holds its last frame without further sync ticks, and a
	// safety deadline prevents a stuck boundary from freezing the loop.
	remaining := time.Duration(scene.DurationMs()-pos.OffsetMs) * time.Millisecond
	deadline := o.clock.Now().Add(remaining + eofSafetyMargin)

	ticker := time.NewTicker(o.syncCfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.reloadChan:
			return
		case <-ticker.C:
			if o.modes.Mode() != ModePlaying {
				return
			}
			now := o.clock.Now()
			cur, err := timeline.Map(scenes, now)
			if err != nil || cur.SceneIndex != pos.SceneIndex || cur.Scene.ID != scene.ID {
				return
			}
			if now.After(deadline) {
				logger.Log.Warn().
					Str("scene_id", scene.ID).
					Msg("Scene exceeded its safety deadline, forcing advance")
				return
			}

			if eof, err := o.port.EOFReached(o.ctx); err == nil && eof {
				o.waitBoundary(scenes, pos.SceneIndex)
				return
			}

			if err := o.controller.Tick(o.ctx, cur.OffsetMs, durMs); err != nil {
				if o.noteFailure(err) {
					return
				}
				continue
			}
			o.breaker.Success()
		}
	}
}

// waitBoundary blocks until the wall clock maps to a different scene than
// the one at index, or playback is interrupted
func (o *Orchestrator) waitBoundary(scenes []*models.Scene, index int) {
	ticker := time.NewTicker(o.syncCfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.reloadChan:
			return
		case <-ticker.C:
			if o.modes.Mode() != ModePlaying {
				return
			}
			cur, err := timeline.Map(scenes, o.clock.Now())
			if err != nil || cur.SceneIndex != index {
				return
			}
		}
	}
}

// showPlaceholder displays the status image for a non-playing mode
func (o *Orchestrator) showPlaceholder(mode DisplayMode) {
	path := o.placeholders.For(mode)
	if path == "" || o.currentPath() == path {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.Log.Debug().
			Str("path", path).
			Str("mode", mode.String()).
			Msg("Placeholder image missing")
		return
	}
	if err := o.load(path); err == nil {
		logger.Log.Info().
			Str("mode", mode.String()).
			Msg("Showing placeholder")
	}
}

// idleWait sleeps briefly while remaining responsive to shutdown and
// playlist updates
func (o *Orchestrator) idleWait() {
	select {
	case <-o.ctx.Done():
	case <-o.reloadChan:
	case <-time.After(idlePollInterval):
	}
}

// load sends media to the player and records the outcome with the breaker
func (o *Orchestrator) load(path string) error {
	if err := o.port.Load(o.ctx, path); err != nil {
		o.noteFailure(err)
		return err
	}
	o.breaker.Success()

	o.mu.Lock()
	o.loadedPath = path
	o.mu.Unlock()
	return nil
}

// noteFailure records a command failure and restarts the player process if
// the breaker trips. Returns true when a restart happened, meaning the
// current segment must be abandoned and media reloaded.
func (o *Orchestrator) noteFailure(err error) bool {
	logger.Log.Debug().
		Err(err).
		Int("failures", o.breaker.Failures()+1).
		Msg("Player command failed")

	if !o.breaker.Failure() {
		return false
	}

	logger.Log.Error().
		Err(err).
		Msg("Sustained player command failures, restarting player")

	if o.metrics != nil {
		o.metrics.IncPlayerRestart()
	}
	if restartErr := o.supervisor.Restart(); restartErr != nil {
		logger.Log.Error().
			Err(restartErr).
			Msg("Player restart failed")
	}
	o.breaker.Reset()

	o.mu.Lock()
	o.loadedPath = ""
	o.mu.Unlock()
	return true
}

// currentPath returns the last successfully loaded media path
func (o *Orchestrator) currentPath() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loadedPath
}

// setState records the orchestrator's state and strategy
func (o *Orchestrator) setState(state State, strategy Strategy) {
	o.mu.Lock()
	o.state = state
	o.strategy = strategy
	o.mu.Unlock()
}

// trackScene records which scene the wall clock currently maps to
func (o *Orchestrator) trackScene(index int, id string) {
	o.mu.Lock()
	o.sceneIndex = index
	o.sceneID = id
	o.mu.Unlock()
}
