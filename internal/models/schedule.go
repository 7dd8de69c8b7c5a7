package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day names as delivered by the backend
const (
	DaySunday    = "SUNDAY"
	DayMonday    = "MONDAY"
	DayTuesday   = "TUESDAY"
	DayWednesday = "WEDNESDAY"
	DayThursday  = "THURSDAY"
	DayFriday    = "FRIDAY"
	DaySaturday  = "SATURDAY"
)

const minutesPerDay = 24 * 60

// ScheduleWindow restricts a scene to part of a week. Start and End are
// "HH:MM" wall-clock times; an empty string means unbounded on that side.
// Start > End describes an overnight window that spans midnight into the
// following day.
type ScheduleWindow struct {
	Day   string `json:"day_of_week"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// ActiveAt reports whether t falls inside the window. Evaluation uses the
// local wall clock, matching the schedule's authoring timezone on the device.
func (w ScheduleWindow) ActiveAt(t time.Time) bool {
	day, ok := dayOfWeek(w.Day)
	if !ok {
		return false
	}

	minute := t.Hour()*60 + t.Minute()

	startMin, hasStart := parseClock(w.Start)
	endMin, hasEnd := parseClock(w.End)

	// Overnight wraparound: active from start to midnight on the scheduled
	// day, then midnight to end on the following day.
	if hasStart && hasEnd && startMin > endMin {
		if t.Weekday() == day {
			return minute >= startMin
		}
		if t.Weekday() == (day+1)%7 {
			return minute < endMin
		}
		return false
	}

	if t.Weekday() != day {
		return false
	}

	lower := 0
	if hasStart {
		lower = startMin
	}
	upper := minutesPerDay
	if hasEnd {
		upper = endMin
	}
	return minute >= lower && minute < upper
}

// Validate checks the window's day name and time format
func (w ScheduleWindow) Validate() error {
	if _, ok := dayOfWeek(w.Day); !ok {
		return fmt.Errorf("invalid day of week: %q", w.Day)
	}
	if w.Start != "" {
		if _, ok := parseClock(w.Start); !ok {
			return fmt.Errorf("invalid start time: %q", w.Start)
		}
	}
	if w.End != "" {
		if _, ok := parseClock(w.End); !ok {
			return fmt.Errorf("invalid end time: %q", w.End)
		}
	}
	return nil
}

// dayOfWeek maps a backend day name to time.Weekday
func dayOfWeek(name string) (time.Weekday, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case DaySunday:
		return time.Sunday, true
	case DayMonday:
		return time.Monday, true
	case DayTuesday:
		return time.Tuesday, true
	case DayWednesday:
		return time.Wednesday, true
	case DayThursday:
		return time.Thursday, true
	case DayFriday:
		return time.Friday, true
	case DaySaturday:
		return time.Saturday, true
	}
	return 0, false
}

// parseClock parses "HH:MM" into minutes since midnight.
// Returns false for empty or malformed input.
func parseClock(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
