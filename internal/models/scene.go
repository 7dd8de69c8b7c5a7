// Package models defines the core data entities for the signage agent.
package models

import (
	"math"
	"time"
)

// MediaType identifies how a scene's media is timed
type MediaType string

const (
	// MediaTypeImage is still content displayed for a fixed duration
	MediaTypeImage MediaType = "IMAGE"

	// MediaTypeVideo is natively timed content played to completion
	MediaTypeVideo MediaType = "VIDEO"
)

// Scene represents one playable unit of the content loop. Scenes are
// immutable once constructed; content updates replace the whole list.
type Scene struct {
	ID              string           `json:"id" gorm:"type:text;primaryKey;column:id"`
	Order           int              `json:"order" gorm:"type:integer;not null;column:position"`
	MediaFile       string           `json:"media_file" gorm:"type:text;not null;column:media_file"`
	MediaType       MediaType        `json:"media_type" gorm:"type:text;not null;column:media_type"`
	DurationSeconds float64          `json:"duration" gorm:"type:real;not null;column:duration_seconds"`
	Schedule        []ScheduleWindow `json:"days_scheduled,omitempty" gorm:"serializer:json;column:schedule"`
	CreatedAt       time.Time        `json:"created_at,omitempty" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// DurationMs returns the scene's display duration in integer milliseconds.
// Cycle arithmetic is done in milliseconds to avoid float drift over long
// playback sessions.
func (s *Scene) DurationMs() int64 {
	return int64(math.Round(s.DurationSeconds * 1000))
}

// ActiveAt reports whether the scene's schedule permits playback at t.
// A scene with no schedule windows is always active.
func (s *Scene) ActiveAt(t time.Time) bool {
	if len(s.Schedule) == 0 {
		return true
	}
	for _, w := range s.Schedule {
		if w.ActiveAt(t) {
			return true
		}
	}
	return false
}
