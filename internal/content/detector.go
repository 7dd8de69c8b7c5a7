// Package content manages the device's local copy of its playlist: change
// detection, manifest storage, media download, loop stitching, and the
// polling loop that keeps it all fresh.
package content

import (
	"os"
	"sync"
	"time"
)

// ChangeDetector reports whether content has changed since the last poll.
// Poll consumes the signal: a second call without an intervening change
// returns false.
type ChangeDetector interface {
	Poll() bool
}

// MtimeDetector detects manifest changes by watching a file's modification
// time. This is how an out-of-band updater (or a human with scp) gets
// picked up without backend involvement.
type MtimeDetector struct {
	path string

	mu   sync.Mutex
	last time.Time
}

// NewMtimeDetector creates a detector for the file at path
func NewMtimeDetector(path string) *MtimeDetector {
	d := &MtimeDetector{path: path}
	if info, err := os.Stat(path); err == nil {
		d.last = info.ModTime()
	}
	return d
}

// Poll returns true when the file's mtime has advanced since the last call
func (d *MtimeDetector) Poll() bool {
	info, err := os.Stat(d.path)
	if err != nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if info.ModTime().After(d.last) {
		d.last = info.ModTime()
		return true
	}
	return false
}

// FlagDetector is set externally (fsnotify events, backend push) and
// cleared by Poll
type FlagDetector struct {
	mu  sync.Mutex
	set bool
}

// NewFlagDetector creates an unset flag detector
func NewFlagDetector() *FlagDetector {
	return &FlagDetector{}
}

// Set marks content as changed
func (d *FlagDetector) Set() {
	d.mu.Lock()
	d.set = true
	d.mu.Unlock()
}

// Poll returns and clears the changed flag
func (d *FlagDetector) Poll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.set
	d.set = false
	return was
}

// CompositeDetector reports a change when any member does. Every member is
// polled so consumed flags stay consumed.
type CompositeDetector struct {
	detectors []ChangeDetector
}

// NewCompositeDetector combines multiple detectors
func NewCompositeDetector(detectors ...ChangeDetector) *CompositeDetector {
	return &CompositeDetector{detectors: detectors}
}

// Poll polls all members and returns true if any reported a change
func (d *CompositeDetector) Poll() bool {
	changed := false
	for _, det := range d.detectors {
		if det.Poll() {
			changed = true
		}
	}
	return changed
}
