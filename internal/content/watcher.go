package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumenplay/agent/internal/logger"
)

const debounceWindow = 500 * time.Millisecond

// Watcher watches the scenes directory for manifest rewrites and sets a
// flag detector when one lands. fsnotify is preferred; if it cannot be set
// up the watcher falls back to mtime polling.
type Watcher struct {
	dir          string
	manifestName string
	flag         *FlagDetector
	pollInterval time.Duration

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
	stopped  bool
}

// NewWatcher creates a watcher for the manifest file in dir, reporting
// changes through flag
func NewWatcher(dir, manifestName string, flag *FlagDetector, pollInterval time.Duration) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("scenes directory cannot be empty")
	}
	if flag == nil {
		return nil, fmt.Errorf("flag detector cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scenes directory: %w", err)
	}

	return &Watcher{
		dir:          dir,
		manifestName: manifestName,
		flag:         flag,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
	}, nil
}

// Start begins watching for manifest changes
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("watcher has been stopped")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("dir", w.dir).
			Msg("Failed to create fsnotify watcher, falling back to polling")
		w.fsnotifyWatcher = nil
	} else {
		w.fsnotifyWatcher = watcher
		if err := watcher.Add(w.dir); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("dir", w.dir).
				Msg("Failed to watch scenes directory, falling back to polling")
			_ = watcher.Close()
			w.fsnotifyWatcher = nil
		}
	}

	go w.runWatching()

	logger.Log.Info().
		Str("dir", w.dir).
		Bool("using_fsnotify", w.fsnotifyWatcher != nil).
		Msg("Content watcher started")
	return nil
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	if w.fsnotifyWatcher != nil {
		if err := w.fsnotifyWatcher.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}
	<-w.watchDone
	return nil
}

// runWatching runs the file watching loop (fsnotify or polling)
func (w *Watcher) runWatching() {
	defer close(w.watchDone)

	if w.fsnotifyWatcher != nil {
		w.watchEvents()
	} else {
		w.pollMtime()
	}
}

// watchEvents consumes fsnotify events, debouncing bursts from atomic
// rename-into-place writes
func (w *Watcher) watchEvents() {
	var pendingSince time.Time

	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.manifestName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				if pendingSince.IsZero() {
					pendingSince = time.Now()
				}
			}
		case err, ok := <-w.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			if pendingSince.IsZero() {
				continue
			}
			// Let the write settle before signaling
			if time.Since(pendingSince) < debounceWindow {
				continue
			}
			pendingSince = time.Time{}
			w.flag.Set()
			logger.Log.Debug().
				Str("manifest", w.manifestName).
				Msg("Manifest change detected")
		}
	}
}

// pollMtime is the fallback when fsnotify is unavailable
func (w *Watcher) pollMtime() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	path := filepath.Join(w.dir, w.manifestName)
	if info, err := os.Stat(path); err == nil {
		w.lastSeen = info.ModTime()
	}

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(w.lastSeen) {
				w.lastSeen = info.ModTime()
				w.flag.Set()
				logger.Log.Debug().
					Str("manifest", w.manifestName).
					Msg("Manifest change detected by polling")
			}
		}
	}
}
