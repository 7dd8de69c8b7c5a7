package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/models"
	syncctl "github.com/lumenplay/agent/internal/sync"
	"github.com/lumenplay/agent/internal/timeline"
)

// recordingPort is a thread-safe player fake for orchestrator tests
type recordingPort struct {
	mu       stdsync.Mutex
	loads    []string
	seeks    []float64
	loadErr  error
	position float64
	duration float64
}

func (p *recordingPort) Load(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loads = append(p.loads, path)
	return nil
}

func (p *recordingPort) Seek(_ context.Context, seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	return nil
}

func (p *recordingPort) SetSpeed(context.Context, float64) error { return nil }
func (p *recordingPort) SetPaused(context.Context, bool) error   { return nil }

func (p *recordingPort) Position(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *recordingPort) Duration(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, nil
}

func (p *recordingPort) EOFReached(context.Context) (bool, error) { return false, nil }

func (p *recordingPort) loadedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.loads))
	copy(out, p.loads)
	return out
}

func (p *recordingPort) seekCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seeks)
}

type countingRestarter struct {
	mu    stdsync.Mutex
	count int
}

func (r *countingRestarter) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRestarter) restarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func fastSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		TickInterval:          10 * time.Millisecond,
		LogInterval:           5 * time.Second,
		GentleThresholdMs:     10,
		ModerateThresholdMs:   30,
		AggressiveThresholdMs: 100,
		SeekThresholdMs:       500,
		DurationRetryWindow:   100 * time.Millisecond,
		FallbackDuration:      30 * time.Second,
	}
}

func writeTestMedia(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("media"), 0o644))
	return path
}

func newTestOrchestrator(port *recordingPort, mode DisplayMode, placeholders Placeholders) (*Orchestrator, *countingRestarter) {
	cfg := fastSyncConfig()
	restarter := &countingRestarter{}
	controller := syncctl.NewController(cfg, port, nil)
	provider := ModeProviderFunc(func() DisplayMode { return mode })
	o := NewOrchestrator(cfg, port, restarter, controller, provider, placeholders, timeline.SystemClock{}, nil)
	return o, restarter
}

func TestOrchestratorShowsPlaceholderWhenUnregistered(t *testing.T) {
	dir := t.TempDir()
	splash := writeTestMedia(t, dir, "unregistered.png")

	port := &recordingPort{}
	o, _ := newTestOrchestrator(port, ModeUnregistered, Placeholders{Unregistered: splash})
	require.NoError(t, o.Start())
	defer o.Stop()

	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return len(loads) == 1 && loads[0] == splash
	}, 2*time.Second, 10*time.Millisecond)

	// Same mode on subsequent iterations must not reload the placeholder
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, port.loadedPaths(), 1)
	assert.Equal(t, "no_content", o.Status().State)
}

func TestOrchestratorPlaysImageScene(t *testing.T) {
	dir := t.TempDir()
	media := writeTestMedia(t, dir, "poster.jpg")

	port := &recordingPort{}
	o, _ := newTestOrchestrator(port, ModePlaying, Placeholders{})
	o.UpdatePlaylist(models.NewPlaylist([]*models.Scene{
		{ID: "s1", Order: 0, MediaFile: media, MediaType: models.MediaTypeImage, DurationSeconds: 300},
	}))
	require.NoError(t, o.Start())
	defer o.Stop()

	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return len(loads) == 1 && loads[0] == media
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st := o.Status()
		return st.State == "playing" && st.Strategy == "scene_by_scene"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestratorStitchedLoop(t *testing.T) {
	dir := t.TempDir()
	loop := writeTestMedia(t, dir, "loop.mp4")
	a := writeTestMedia(t, dir, "a.mp4")
	b := writeTestMedia(t, dir, "b.mp4")

	port := &recordingPort{duration: 20}
	o, _ := newTestOrchestrator(port, ModePlaying, Placeholders{})

	pl := models.NewPlaylist([]*models.Scene{
		{ID: "a", Order: 0, MediaFile: a, MediaType: models.MediaTypeVideo, DurationSeconds: 10},
		{ID: "b", Order: 1, MediaFile: b, MediaType: models.MediaTypeVideo, DurationSeconds: 10},
	})
	pl.LoopFile = loop
	o.UpdatePlaylist(pl)

	require.NoError(t, o.Start())
	defer o.Stop()

	// The loop file is loaded, aligned with an initial seek, and playback
	// enters the stitched strategy
	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return len(loads) == 1 && loads[0] == loop && port.seekCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st := o.Status()
		return st.State == "playing" && st.Strategy == "stitched_loop"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestratorPlaylistUpdateInterrupts(t *testing.T) {
	dir := t.TempDir()
	first := writeTestMedia(t, dir, "first.jpg")
	second := writeTestMedia(t, dir, "second.jpg")

	port := &recordingPort{}
	o, _ := newTestOrchestrator(port, ModePlaying, Placeholders{})
	o.UpdatePlaylist(models.NewPlaylist([]*models.Scene{
		{ID: "s1", Order: 0, MediaFile: first, MediaType: models.MediaTypeImage, DurationSeconds: 300},
	}))
	require.NoError(t, o.Start())
	defer o.Stop()

	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return len(loads) >= 1 && loads[0] == first
	}, 2*time.Second, 10*time.Millisecond)

	o.UpdatePlaylist(models.NewPlaylist([]*models.Scene{
		{ID: "s2", Order: 0, MediaFile: second, MediaType: models.MediaTypeImage, DurationSeconds: 300},
	}))

	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return loads[len(loads)-1] == second
	}, 2*time.Second, 10*time.Millisecond)
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func TestOrchestratorSkipsSceneWithMissingMedia(t *testing.T) {
	dir := t.TempDir()
	present := writeTestMedia(t, dir, "present.jpg")
	missing := filepath.Join(dir, "missing.jpg")

	port := &recordingPort{}
	o, _ := newTestOrchestrator(port, ModePlaying, Placeholders{})
	o.UpdatePlaylist(models.NewPlaylist([]*models.Scene{
		{ID: "gone", Order: 0, MediaFile: missing, MediaType: models.MediaTypeImage, DurationSeconds: 300},
		{ID: "here", Order: 1, MediaFile: present, MediaType: models.MediaTypeImage, DurationSeconds: 300},
	}))
	require.NoError(t, o.Start())
	defer o.Stop()

	// The missing scene loses its slot: the present scene is shown no
	// matter where the wall clock lands in the cycle
	require.Eventually(t, func() bool {
		loads := port.loadedPaths()
		return len(loads) >= 1 && loads[0] == present
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return o.Status().State == "playing"
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, port.loadedPaths(), missing)
}

func TestOrchestratorNoContentWhenAllSchedulesInactive(t *testing.T) {
	dir := t.TempDir()
	media := writeTestMedia(t, dir, "weekend.mp4")

	// Monday noon; the only scene is scheduled for Saturday
	clock := fixedClock{at: time.Date(2026, 8, 3, 12, 0, 0, 0, time.Local)}
	cfg := fastSyncConfig()
	port := &recordingPort{}
	controller := syncctl.NewController(cfg, port, nil)
	provider := ModeProviderFunc(func() DisplayMode { return ModePlaying })
	o := NewOrchestrator(cfg, port, &countingRestarter{}, controller, provider, Placeholders{}, clock, nil)

	o.UpdatePlaylist(models.NewPlaylist([]*models.Scene{
		{ID: "sat", Order: 0, MediaFile: media, MediaType: models.MediaTypeVideo, DurationSeconds: 10,
			Schedule: []models.ScheduleWindow{
				{Day: models.DaySaturday, Start: "09:00", End: "17:00"},
			}},
	}))
	require.NoError(t, o.Start())
	defer o.Stop()

	require.Eventually(t, func() bool {
		return o.Status().State == "no_content"
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, port.loadedPaths())
	assert.Zero(t, port.seekCount())
}

func TestOrchestratorRestartsPlayerWhenBreakerTrips(t *testing.T) {
	port := &recordingPort{}
	o, restarter := newTestOrchestrator(port, ModePlaying, Placeholders{})

	failure := errors.New("ipc write failed")
	for i := 0; i < defaultBreakerThreshold-1; i++ {
		assert.False(t, o.noteFailure(failure))
	}
	assert.True(t, o.noteFailure(failure))
	assert.Equal(t, 1, restarter.restarts())
	assert.False(t, o.breaker.Tripped(), "breaker must be reset after restart")
}
