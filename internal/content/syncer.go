package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/lumenplay/agent/internal/backend"
	"github.com/lumenplay/agent/internal/db"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
)

const (
	initialFetchBaseDelay = 2 * time.Second
	initialFetchMaxDelay  = 5 * time.Minute
	syncTimeout           = 10 * time.Minute
)

// PlaylistSink receives freshly built playlists
type PlaylistSink interface {
	UpdatePlaylist(p *models.Playlist)
}

// Syncer keeps local content in step with the backend: polls for updates,
// downloads media, stitches loops, persists the manifest, and hands the
// resulting playlist to the playback side.
type Syncer struct {
	client     *backend.Client
	store      *Store
	stitcher   *Stitcher
	repos      *db.Repositories
	sink       PlaylistSink
	detector   ChangeDetector
	deviceUUID string

	pollInterval time.Duration
	lastVersion  string

	syncChan chan struct{}
	stopChan chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
}

// NewSyncer creates a content syncer. The backend client may be nil for
// offline deployments; the syncer then serves cached content only.
func NewSyncer(
	client *backend.Client,
	store *Store,
	stitcher *Stitcher,
	repos *db.Repositories,
	sink PlaylistSink,
	detector ChangeDetector,
	deviceUUID string,
	pollInterval time.Duration,
) *Syncer {
	return &Syncer{
		client:       client,
		store:        store,
		stitcher:     stitcher,
		repos:        repos,
		sink:         sink,
		detector:     detector,
		deviceUUID:   deviceUUID,
		pollInterval: pollInterval,
		syncChan:     make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start pushes any cached playlist immediately so playback resumes without
// waiting for the backend, then begins the polling loop
func (s *Syncer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("syncer already started")
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if pl, version, err := s.store.Load(ctx); err == nil {
		s.lastVersion = version
		s.sink.UpdatePlaylist(pl)
		logger.Log.Info().
			Int("scenes", pl.Len()).
			Str("content_version", version).
			Msg("Loaded cached content")
	} else {
		logger.Log.Info().Msg("No cached content, waiting for first sync")
	}

	go s.run()
	return nil
}

// Stop shuts down the polling loop
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopChan)
	<-s.done
}

// TriggerSync requests an immediate sync, coalescing with any pending one.
// Used by the websocket push channel.
func (s *Syncer) TriggerSync() {
	select {
	case s.syncChan <- struct{}{}:
	default:
	}
}

// run is the polling loop. A device with no content yet retries the first
// fetch with exponential backoff instead of waiting full poll intervals.
func (s *Syncer) run() {
	defer close(s.done)

	if s.client != nil && s.lastVersion == "" {
		s.initialFetch()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.syncChan:
			s.syncOnce()
		case <-ticker.C:
			if s.detector != nil && s.detector.Poll() {
				s.reloadFromDisk()
				continue
			}
			s.pollBackend()
		}
	}
}

// initialFetch retries the first content pull with exponential backoff
func (s *Syncer) initialFetch() {
	delay := initialFetchBaseDelay
	for {
		if err := s.syncOnce(); err == nil {
			return
		}

		logger.Log.Warn().
			Dur("retry_in", delay).
			Msg("Initial content fetch failed, backing off")

		select {
		case <-s.stopChan:
			return
		case <-s.syncChan:
		case <-time.After(delay):
		}

		delay *= 2
		if delay > initialFetchMaxDelay {
			delay = initialFetchMaxDelay
		}
	}
}

// pollBackend asks the backend whether content changed and syncs if so
func (s *Syncer) pollBackend() {
	if s.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.pollInterval)
	defer cancel()

	poll, err := s.client.PollUpdates(ctx, s.deviceUUID)
	if err != nil {
		logger.Log.Debug().
			Err(err).
			Msg("Update poll failed")
		return
	}

	if poll.UpdateAvailable || (poll.ContentVersion != "" && poll.ContentVersion != s.lastVersion) {
		_ = s.syncOnce()
	}
}

// reloadFromDisk rebuilds the playlist from a manifest that changed
// outside the syncer
func (s *Syncer) reloadFromDisk() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pl, version, err := s.store.Load(ctx)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Manifest changed on disk but could not be loaded")
		return
	}
	// The syncer's own saves also trip the detectors; a manifest carrying
	// the version we just published is not news.
	if version != "" && version == s.lastVersion {
		return
	}
	s.lastVersion = version
	s.sink.UpdatePlaylist(pl)
	logger.Log.Info().
		Int("scenes", pl.Len()).
		Msg("Reloaded playlist from changed manifest")
}

// syncOnce performs one full content sync: fetch manifest, download media,
// stitch, persist, publish, clean up
func (s *Syncer) syncOnce() error {
	if s.client == nil {
		return fmt.Errorf("no backend client configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	content, err := s.client.FetchContent(ctx, s.deviceUUID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Content fetch failed")
		return err
	}

	scenes := make([]*models.Scene, 0, len(content.Scenes))
	referenced := make(map[string]bool, len(content.Scenes))

	for _, desc := range content.Scenes {
		name, err := s.ensureMedia(ctx, desc.MediaURL)
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("scene_id", desc.ID).
				Str("url", desc.MediaURL).
				Msg("Media download failed, scene excluded from this sync")
			continue
		}
		referenced[name] = true
		scenes = append(scenes, &models.Scene{
			ID:              desc.ID,
			Order:           desc.Order,
			MediaFile:       name,
			MediaType:       desc.MediaType,
			DurationSeconds: desc.DurationSeconds,
			Schedule:        desc.Schedule,
		})
	}

	manifest := &Manifest{
		ContentVersion: content.ContentVersion,
		Scenes:         scenes,
	}

	if s.stitcher != nil && s.stitcher.CanStitch(scenes) {
		absolute := make([]*models.Scene, len(scenes))
		for i, scene := range scenes {
			c := *scene
			c.MediaFile = s.store.MediaPath(scene.MediaFile)
			absolute[i] = &c
		}
		sorted := models.NewPlaylist(absolute).Scenes()
		if loopName, err := s.stitcher.Stitch(ctx, sorted); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Loop stitch failed, continuing with scene-by-scene playback")
		} else {
			manifest.LoopFile = loopName
		}
	}

	if err := s.store.Save(ctx, manifest); err != nil {
		return fmt.Errorf("failed to persist manifest: %w", err)
	}

	s.lastVersion = content.ContentVersion
	pl, _, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload saved manifest: %w", err)
	}
	s.sink.UpdatePlaylist(pl)
	s.store.CleanupMedia(referenced)

	if s.repos != nil {
		if err := s.repos.DeviceState.MarkContentPull(ctx, s.deviceUUID, time.Now()); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Failed to record content pull time")
		}
	}

	logger.Log.Info().
		Int("scenes", len(scenes)).
		Str("content_version", content.ContentVersion).
		Bool("stitched", manifest.LoopFile != "").
		Msg("Content sync complete")
	return nil
}

// ensureMedia downloads a media URL into the content-addressed store if not
// already present, returning the bare filename
func (s *Syncer) ensureMedia(ctx context.Context, mediaURL string) (string, error) {
	name := mediaFileName(mediaURL)
	dest := s.store.MediaPath(name)

	if _, err := os.Stat(dest); err == nil {
		return name, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}

	if err := s.client.DownloadMedia(ctx, mediaURL, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finish media file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("failed to move media into place: %w", err)
	}

	logger.Log.Debug().
		Str("file", name).
		Str("url", mediaURL).
		Msg("Downloaded media")
	return name, nil
}

// mediaFileName derives a content-addressed filename from a media URL:
// sha256 of the URL plus its original extension
func mediaFileName(mediaURL string) string {
	sum := sha256.Sum256([]byte(mediaURL))
	ext := ""
	if u, err := url.Parse(mediaURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return hex.EncodeToString(sum[:]) + ext
}
