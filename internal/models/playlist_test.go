package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlaylistSortsByOrder(t *testing.T) {
	p := NewPlaylist([]*Scene{
		{ID: "c", Order: 2},
		{ID: "a", Order: 0},
		{ID: "b", Order: 1},
	})

	require.Equal(t, 3, p.Len())
	scenes := p.Scenes()
	assert.Equal(t, "a", scenes[0].ID)
	assert.Equal(t, "b", scenes[1].ID)
	assert.Equal(t, "c", scenes[2].ID)
}

func TestPlaylistActiveAtFiltersBySchedule(t *testing.T) {
	p := NewPlaylist([]*Scene{
		{ID: "always", Order: 0, DurationSeconds: 10},
		{ID: "friday-only", Order: 1, DurationSeconds: 10, Schedule: []ScheduleWindow{
			{Day: DayFriday, Start: "09:00", End: "17:00"},
		}},
	})

	friday := weekday(t, time.Friday, 12, 0)
	saturday := weekday(t, time.Saturday, 12, 0)

	active := p.ActiveAt(friday)
	require.Len(t, active, 2)

	active = p.ActiveAt(saturday)
	require.Len(t, active, 1)
	assert.Equal(t, "always", active[0].ID)
}

func TestPlaylistHasSchedules(t *testing.T) {
	assert.False(t, NewPlaylist([]*Scene{{ID: "a"}}).HasSchedules())
	assert.True(t, NewPlaylist([]*Scene{
		{ID: "a"},
		{ID: "b", Schedule: []ScheduleWindow{{Day: DayMonday}}},
	}).HasSchedules())
}

func TestSceneDurationMs(t *testing.T) {
	assert.Equal(t, int64(10000), (&Scene{DurationSeconds: 10}).DurationMs())
	assert.Equal(t, int64(12500), (&Scene{DurationSeconds: 12.5}).DurationMs())
	assert.Equal(t, int64(33), (&Scene{DurationSeconds: 0.0333}).DurationMs())
	assert.Equal(t, int64(0), (&Scene{}).DurationMs())
}

func TestSceneActiveAtWithoutSchedule(t *testing.T) {
	s := &Scene{ID: "a"}
	assert.True(t, s.ActiveAt(time.Now()))
}
