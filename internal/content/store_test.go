package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/models"
)

func testContentConfig(t *testing.T) config.ContentConfig {
	t.Helper()
	base := t.TempDir()
	return config.ContentConfig{
		MediaDir:   filepath.Join(base, "media"),
		ScenesDir:  filepath.Join(base, "scenes"),
		StagingDir: filepath.Join(base, "staging"),
		StateDir:   filepath.Join(base, "state"),
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	cfg := testContentConfig(t)
	store := NewStore(cfg, nil)

	manifest := &Manifest{
		ContentVersion: "v5",
		Scenes: []*models.Scene{
			{ID: "b", Order: 1, MediaFile: "bbb.jpg", MediaType: models.MediaTypeImage, DurationSeconds: 8},
			{ID: "a", Order: 0, MediaFile: "aaa.mp4", MediaType: models.MediaTypeVideo, DurationSeconds: 12},
		},
		LoopFile: "loop.mp4",
	}
	require.NoError(t, store.Save(context.Background(), manifest))

	pl, version, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v5", version)
	require.Equal(t, 2, pl.Len())

	// Scenes come back ordered with media resolved to absolute paths
	scenes := pl.Scenes()
	assert.Equal(t, "a", scenes[0].ID)
	assert.Equal(t, filepath.Join(cfg.MediaDir, "aaa.mp4"), scenes[0].MediaFile)
	assert.Equal(t, filepath.Join(cfg.ScenesDir, "loop.mp4"), pl.LoopFile)
}

func TestStoreLoadMissingManifest(t *testing.T) {
	store := NewStore(testContentConfig(t), nil)

	_, _, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestStoreSaveIsAtomic(t *testing.T) {
	cfg := testContentConfig(t)
	store := NewStore(cfg, nil)

	require.NoError(t, store.Save(context.Background(), &Manifest{ContentVersion: "v1"}))

	// No temp file left behind after the rename
	entries, err := os.ReadDir(cfg.ScenesDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestName, entries[0].Name())
}

func TestStoreCleanupMedia(t *testing.T) {
	cfg := testContentConfig(t)
	store := NewStore(cfg, nil)

	require.NoError(t, os.MkdirAll(cfg.MediaDir, 0o755))
	keep := filepath.Join(cfg.MediaDir, "keep.mp4")
	drop := filepath.Join(cfg.MediaDir, "drop.mp4")
	require.NoError(t, os.WriteFile(keep, []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(drop, []byte("d"), 0o644))

	store.CleanupMedia(map[string]bool{"keep.mp4": true})

	_, err := os.Stat(keep)
	assert.NoError(t, err)
	_, err = os.Stat(drop)
	assert.True(t, os.IsNotExist(err))
}

func TestMediaFileName(t *testing.T) {
	a := mediaFileName("http://cdn.example.com/media/video.mp4")
	b := mediaFileName("http://cdn.example.com/media/video.mp4")
	c := mediaFileName("http://cdn.example.com/media/other.mp4")

	assert.Equal(t, a, b, "same URL must map to the same filename")
	assert.NotEqual(t, a, c)
	assert.Equal(t, ".mp4", filepath.Ext(a))
	assert.Len(t, a, 64+len(".mp4"))
}
