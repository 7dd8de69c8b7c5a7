package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Reference week: 2026-08-02 is a Sunday
func weekday(t *testing.T, day time.Weekday, hour, minute int) time.Time {
	t.Helper()
	base := time.Date(2026, 8, 2, 0, 0, 0, 0, time.Local)
	return base.AddDate(0, 0, int(day)).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestScheduleWindowBounded(t *testing.T) {
	w := ScheduleWindow{Day: DayFriday, Start: "09:00", End: "17:00"}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"friday during window", weekday(t, time.Friday, 12, 0), true},
		{"friday at start", weekday(t, time.Friday, 9, 0), true},
		{"friday at end is exclusive", weekday(t, time.Friday, 17, 0), false},
		{"friday before start", weekday(t, time.Friday, 8, 59), false},
		{"saturday during hours", weekday(t, time.Saturday, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.ActiveAt(tt.at))
		})
	}
}

func TestScheduleWindowOneSided(t *testing.T) {
	evening := ScheduleWindow{Day: DayMonday, Start: "18:00"}
	assert.True(t, evening.ActiveAt(weekday(t, time.Monday, 23, 59)))
	assert.True(t, evening.ActiveAt(weekday(t, time.Monday, 18, 0)))
	assert.False(t, evening.ActiveAt(weekday(t, time.Monday, 17, 59)))

	morning := ScheduleWindow{Day: DayMonday, End: "12:00"}
	assert.True(t, morning.ActiveAt(weekday(t, time.Monday, 0, 0)))
	assert.True(t, morning.ActiveAt(weekday(t, time.Monday, 11, 59)))
	assert.False(t, morning.ActiveAt(weekday(t, time.Monday, 12, 0)))
}

func TestScheduleWindowAllDay(t *testing.T) {
	w := ScheduleWindow{Day: DayWednesday}
	assert.True(t, w.ActiveAt(weekday(t, time.Wednesday, 0, 0)))
	assert.True(t, w.ActiveAt(weekday(t, time.Wednesday, 23, 59)))
	assert.False(t, w.ActiveAt(weekday(t, time.Thursday, 0, 0)))
}

func TestScheduleWindowOvernight(t *testing.T) {
	// Monday 22:00 to 02:00 spans midnight into Tuesday
	w := ScheduleWindow{Day: DayMonday, Start: "22:00", End: "02:00"}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday late evening", weekday(t, time.Monday, 23, 0), true},
		{"monday at start", weekday(t, time.Monday, 22, 0), true},
		{"tuesday early morning", weekday(t, time.Tuesday, 1, 0), true},
		{"tuesday at end", weekday(t, time.Tuesday, 2, 0), false},
		{"monday early morning not included", weekday(t, time.Monday, 1, 0), false},
		{"monday afternoon", weekday(t, time.Monday, 15, 0), false},
		{"tuesday evening", weekday(t, time.Tuesday, 23, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.ActiveAt(tt.at))
		})
	}
}

func TestScheduleWindowCaseInsensitiveDay(t *testing.T) {
	w := ScheduleWindow{Day: "friday", Start: "09:00", End: "17:00"}
	assert.True(t, w.ActiveAt(weekday(t, time.Friday, 12, 0)))
}

func TestScheduleWindowValidate(t *testing.T) {
	assert.NoError(t, ScheduleWindow{Day: DayMonday, Start: "09:00", End: "17:00"}.Validate())
	assert.NoError(t, ScheduleWindow{Day: DayMonday}.Validate())
	assert.Error(t, ScheduleWindow{Day: "FUNDAY"}.Validate())
	assert.Error(t, ScheduleWindow{Day: DayMonday, Start: "25:00"}.Validate())
	assert.Error(t, ScheduleWindow{Day: DayMonday, End: "12:61"}.Validate())
	assert.Error(t, ScheduleWindow{Day: DayMonday, Start: "noon"}.Validate())
}
