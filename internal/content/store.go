package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/db"
	"github.com/lumenplay/agent/internal/logger"
	"github.com/lumenplay/agent/internal/models"
)

// ManifestName is the on-disk scene manifest filename
const ManifestName = "scenes.json"

// Manifest is the locally persisted playlist description. Media references
// are bare filenames inside the media directory; the store resolves them to
// absolute paths when building a playlist.
type Manifest struct {
	ContentVersion string          `json:"content_version"`
	Scenes         []*models.Scene `json:"scenes"`

	// LoopFile is the stitched loop's filename within the scenes directory,
	// empty when no loop exists
	LoopFile string `json:"loop_file,omitempty"`
}

// Store persists the scene manifest twice: as scenes.json for inspection
// and mtime-based change detection, and in SQLite so a reboot without the
// manifest file still resumes playback.
type Store struct {
	cfg   config.ContentConfig
	repos *db.Repositories
}

// NewStore creates a content store. The repository collection may be nil,
// in which case only the manifest file is used.
func NewStore(cfg config.ContentConfig, repos *db.Repositories) *Store {
	return &Store{cfg: cfg, repos: repos}
}

// ManifestPath returns the absolute path of the scene manifest
func (s *Store) ManifestPath() string {
	return filepath.Join(s.cfg.ScenesDir, ManifestName)
}

// MediaPath resolves a bare media filename to its absolute path
func (s *Store) MediaPath(name string) string {
	return filepath.Join(s.cfg.MediaDir, name)
}

// Load builds a playlist from the persisted manifest, falling back to the
// database cache when the manifest file is missing or unreadable
func (s *Store) Load(ctx context.Context) (*models.Playlist, string, error) {
	manifest, err := s.readManifest()
	if err == nil {
		return s.buildPlaylist(manifest), manifest.ContentVersion, nil
	}
	if !os.IsNotExist(err) {
		logger.Log.Warn().
			Err(err).
			Str("path", s.ManifestPath()).
			Msg("Failed to read manifest, trying database cache")
	}

	if s.repos == nil {
		return nil, "", err
	}
	scenes, dbErr := s.repos.Scenes.List(ctx)
	if dbErr != nil {
		return nil, "", fmt.Errorf("no usable scene manifest: %w", dbErr)
	}
	if len(scenes) == 0 {
		return nil, "", err
	}

	logger.Log.Info().
		Int("scenes", len(scenes)).
		Msg("Restored playlist from database cache")
	return s.buildPlaylist(&Manifest{Scenes: scenes}), "", nil
}

// Save persists a manifest atomically (temp file + rename) and mirrors the
// scene list into the database cache
func (s *Store) Save(ctx context.Context, manifest *Manifest) error {
	if err := os.MkdirAll(s.cfg.ScenesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scenes directory: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := s.ManifestPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	if s.repos != nil {
		if err := s.repos.Scenes.ReplaceAll(ctx, manifest.Scenes); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Failed to mirror manifest into database cache")
		}
	}
	return nil
}

// CleanupMedia deletes media files no manifest scene references anymore
func (s *Store) CleanupMedia(referenced map[string]bool) {
	entries, err := os.ReadDir(s.cfg.MediaDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.Warn().
				Err(err).
				Str("dir", s.cfg.MediaDir).
				Msg("Failed to read media directory for cleanup")
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.MediaDir, entry.Name())); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("file", entry.Name()).
				Msg("Failed to remove unreferenced media")
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Log.Info().
			Int("removed", removed).
			Msg("Cleaned up unreferenced media")
	}
}

// readManifest loads and decodes scenes.json
func (s *Store) readManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// buildPlaylist resolves media references to absolute paths and constructs
// an immutable playlist
func (s *Store) buildPlaylist(manifest *Manifest) *models.Playlist {
	scenes := make([]*models.Scene, 0, len(manifest.Scenes))
	for _, src := range manifest.Scenes {
		scene := *src
		scene.MediaFile = s.MediaPath(src.MediaFile)
		scenes = append(scenes, &scene)
	}

	pl := models.NewPlaylist(scenes)
	if manifest.LoopFile != "" {
		pl.LoopFile = filepath.Join(s.cfg.ScenesDir, manifest.LoopFile)
	}
	return pl
}
