package models

import (
	"sort"
	"time"
)

// Playlist is an immutable, ordered collection of scenes plus optional
// stitched-loop metadata. Content updates construct a fresh Playlist and
// swap it in wholesale; readers never observe a partial update.
type Playlist struct {
	scenes []*Scene

	// LoopFile is the absolute path of a pre-concatenated media file covering
	// one full cycle. Empty when no stitched loop exists.
	LoopFile string
}

// NewPlaylist builds a playlist from scenes, ordering by Order with ties
// broken by original position.
func NewPlaylist(scenes []*Scene) *Playlist {
	sorted := make([]*Scene, len(scenes))
	copy(sorted, scenes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return &Playlist{scenes: sorted}
}

// Scenes returns the full ordered scene list
func (p *Playlist) Scenes() []*Scene {
	return p.scenes
}

// Len returns the number of scenes in the playlist
func (p *Playlist) Len() int {
	return len(p.scenes)
}

// ActiveAt returns the subsequence of scenes whose schedule predicate is
// true at t, preserving relative order. The result may be empty when every
// scene is scheduled off.
func (p *Playlist) ActiveAt(t time.Time) []*Scene {
	active := make([]*Scene, 0, len(p.scenes))
	for _, s := range p.scenes {
		if s.ActiveAt(t) {
			active = append(active, s)
		}
	}
	return active
}

// HasSchedules reports whether any scene carries schedule windows. A
// playlist without schedules has a constant active set, which lets the
// orchestrator prefer stitched-loop playback.
func (p *Playlist) HasSchedules() bool {
	for _, s := range p.scenes {
		if len(s.Schedule) > 0 {
			return true
		}
	}
	return false
}
