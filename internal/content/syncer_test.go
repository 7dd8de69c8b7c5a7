package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenplay/agent/internal/backend"
	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/models"
)

type capturingSink struct {
	mu        stdsync.Mutex
	playlists []*models.Playlist
}

func (s *capturingSink) UpdatePlaylist(p *models.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = append(s.playlists, p)
}

func (s *capturingSink) latest() *models.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.playlists) == 0 {
		return nil
	}
	return s.playlists[len(s.playlists)-1]
}

func TestSyncOnceDownloadsAndPublishes(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/devices/dev-1/content":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"content_version": "v2",
				"scenes": [
					{"id": "s1", "order": 0, "media_url": "` + server.URL + `/media/one.jpg", "media_type": "IMAGE", "duration": 10},
					{"id": "s2", "order": 1, "media_url": "` + server.URL + `/media/two.jpg", "media_type": "IMAGE", "duration": 5}
				]
			}`))
		case "/media/one.jpg", "/media/two.jpg":
			_, _ = w.Write([]byte("image-bytes-" + r.URL.Path))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := backend.NewClient(config.BackendConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	cfg := testContentConfig(t)
	store := NewStore(cfg, nil)
	sink := &capturingSink{}
	syncer := NewSyncer(client, store, nil, nil, sink, nil, "dev-1", time.Minute)

	require.NoError(t, syncer.syncOnce())

	pl := sink.latest()
	require.NotNil(t, pl)
	require.Equal(t, 2, pl.Len())

	// Media landed under content-addressed names inside the media dir
	for _, scene := range pl.Scenes() {
		assert.Equal(t, cfg.MediaDir, filepath.Dir(scene.MediaFile))
		assert.FileExists(t, scene.MediaFile)
	}

	// Manifest persisted so a restart resumes from disk
	reloaded, version, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
	assert.Equal(t, 2, reloaded.Len())
}

func TestSyncOnceSkipsFailedDownloads(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/devices/dev-1/content":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"content_version": "v3",
				"scenes": [
					{"id": "ok", "order": 0, "media_url": "` + server.URL + `/media/good.jpg", "media_type": "IMAGE", "duration": 10},
					{"id": "bad", "order": 1, "media_url": "` + server.URL + `/media/missing.jpg", "media_type": "IMAGE", "duration": 5}
				]
			}`))
		case "/media/good.jpg":
			_, _ = w.Write([]byte("good"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := backend.NewClient(config.BackendConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	store := NewStore(testContentConfig(t), nil)
	sink := &capturingSink{}
	syncer := NewSyncer(client, store, nil, nil, sink, nil, "dev-1", time.Minute)

	require.NoError(t, syncer.syncOnce())

	pl := sink.latest()
	require.NotNil(t, pl)
	require.Equal(t, 1, pl.Len())
	assert.Equal(t, "ok", pl.Scenes()[0].ID)
}

func TestTriggerSyncCoalesces(t *testing.T) {
	store := NewStore(testContentConfig(t), nil)
	syncer := NewSyncer(nil, store, nil, nil, &capturingSink{}, nil, "dev-1", time.Minute)

	// Multiple triggers collapse into the single buffered slot
	syncer.TriggerSync()
	syncer.TriggerSync()
	syncer.TriggerSync()

	assert.Len(t, syncer.syncChan, 1)
}
