package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lumenplay/agent/internal/backend"
	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/content"
	"github.com/lumenplay/agent/internal/db"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/metrics"
	"github.com/lumenplay/agent/internal/models"
	"github.com/lumenplay/agent/internal/playback"
	"github.com/lumenplay/agent/internal/player"
	"github.com/lumenplay/agent/internal/server"
	syncctl "github.com/lumenplay/agent/internal/sync"
	"github.com/lumenplay/agent/internal/timeline"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	logger.Log.Info().
		Str("log_level", cfg.Logging.Level).
		Msg("Signage agent starting")

	database, err := db.New(cfg.Database.Path, cfg.Database.ConnectionTimeout, cfg.Database.EnableWAL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to access database connection")
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repos := db.NewRepositories(database)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	state, err := repos.DeviceState.Get(startupCtx)
	cancelStartup()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load device state")
	}
	logger.Log.Info().
		Str("device_uuid", state.DeviceUUID).
		Bool("registered", state.Registered).
		Str("screen_id", state.ScreenID).
		Msg("Device state loaded")

	m := metrics.New()

	// Screen rotation follows the backend-assigned orientation unless the
	// local config pins one explicitly.
	if cfg.Player.Rotation == 0 && state.Orientation != "" {
		info := models.DeviceInfo{Orientation: state.Orientation}
		cfg.Player.Rotation = info.RotationAngle()
	}

	supervisor := player.NewSupervisor(cfg.Player)
	if err := supervisor.Start(); err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Player failed to start, playback will retry via restart")
	}
	defer func() {
		if err := supervisor.Stop(); err != nil {
			logger.Log.Warn().Err(err).Msg("Error stopping player")
		}
	}()

	mpv := player.NewMpvClient(cfg.Player.SocketPath)
	defer mpv.Close()

	controller := syncctl.NewController(cfg.Sync, mpv, m)
	store := content.NewStore(cfg.Content, repos)
	stitcher := content.NewStitcher(cfg.Content)

	placeholders := playback.Placeholders{
		Unregistered:      filepath.Join(cfg.Content.StateDir, "unregistered.png"),
		NotLinked:         filepath.Join(cfg.Content.StateDir, "not_linked.png"),
		WaitingForContent: filepath.Join(cfg.Content.StateDir, "waiting.png"),
	}

	var orch *playback.Orchestrator
	modeProvider := content.NewStateModeProvider(
		repos,
		content.PlaylistSourceFunc(func() *models.Playlist { return orch.Playlist() }),
		cfg.Content.ModePollInterval,
	)
	orch = playback.NewOrchestrator(
		cfg.Sync, mpv, supervisor, controller,
		modeProvider, placeholders, timeline.SystemClock{}, m,
	)

	var client *backend.Client
	if cfg.Backend.BaseURL != "" {
		client, err = backend.NewClient(cfg.Backend)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create backend client")
		}
	} else {
		logger.Log.Warn().Msg("No backend configured, serving cached content only")
	}

	flag := content.NewFlagDetector()
	watcher, err := content.NewWatcher(cfg.Content.ScenesDir, content.ManifestName, flag, time.Second)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create content watcher")
	}
	detector := content.NewCompositeDetector(flag, content.NewMtimeDetector(store.ManifestPath()))

	syncer := content.NewSyncer(
		client, store, stitcher, repos, orch,
		detector, state.DeviceUUID, cfg.Content.PollInterval,
	)

	var infoProvider backend.InfoProvider
	if client != nil {
		infoProvider = backend.NewLiveInfoProvider(client, state.DeviceUUID, cfg.Content.StateDir)
	} else {
		infoProvider = backend.NewCachedInfoProvider(cfg.Content.StateDir)
	}
	refreshDeviceState(infoProvider, repos, state)

	var listener *backend.Listener
	if client != nil && cfg.Backend.WebsocketURL != "" {
		listener = backend.NewListener(cfg.Backend, readToken(cfg.Backend.TokenPath))
		listener.Start()
		go handleCommands(listener, syncer, supervisor, infoProvider, repos, state)
	}

	if err := orch.Start(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start playback orchestrator")
	}
	if err := watcher.Start(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start content watcher")
	}
	if err := syncer.Start(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start content syncer")
	}

	srv := server.New(cfg, database, state.DeviceUUID, orch, controller, m)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Log.Info().
			Str("signal", sig.String()).
			Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Log.Error().
			Err(err).
			Msg("Diagnostics server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("Server shutdown error")
	}
	if listener != nil {
		listener.Stop()
	}
	syncer.Stop()
	if err := watcher.Stop(); err != nil {
		logger.Log.Warn().Err(err).Msg("Watcher shutdown error")
	}
	orch.Stop()

	logger.Log.Info().Msg("Signage agent stopped")
}

// handleCommands dispatches backend push commands
func handleCommands(
	listener *backend.Listener,
	syncer *content.Syncer,
	supervisor *player.Supervisor,
	infoProvider backend.InfoProvider,
	repos *db.Repositories,
	state *models.DeviceState,
) {
	for cmd := range listener.Commands() {
		logger.Log.Info().
			Str("type", string(cmd.Type)).
			Msg("Backend command received")

		switch cmd.Type {
		case backend.CommandContentUpdate:
			syncer.TriggerSync()
		case backend.CommandRefreshInfo:
			refreshDeviceState(infoProvider, repos, state)
		case backend.CommandRestartPlayer:
			if err := supervisor.Restart(); err != nil {
				logger.Log.Error().Err(err).Msg("Player restart failed")
			}
		default:
			logger.Log.Warn().
				Str("type", string(cmd.Type)).
				Msg("Unknown backend command")
		}
	}
}

// refreshDeviceState pulls fresh device info and folds it into the
// persisted device state
func refreshDeviceState(provider backend.InfoProvider, repos *db.Repositories, state *models.DeviceState) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := provider.Info(ctx)
	if err != nil {
		logger.Log.Debug().
			Err(err).
			Msg("Device info unavailable")
		return
	}

	state.Registered = true
	state.ScreenID = info.ScreenID
	state.Orientation = info.Orientation
	if err := repos.DeviceState.Update(ctx, state); err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Failed to persist device state")
	}
}

// readToken loads the bearer token used by the websocket listener
func readToken(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
